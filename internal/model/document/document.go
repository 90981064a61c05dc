package document

// Kind distinguishes the two content collections the chatbot searches.
type Kind string

const (
	KindBlogPostChunk  Kind = "blog_post_chunk"
	KindWeeklyNewsItem Kind = "weekly_news_item"
)

// Document is one searchable piece of site content: a chunk of a blog post or
// an item from the weekly news digest.
type Document struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Content     string   `json:"content,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Publication string   `json:"publication,omitempty"`
	Date        string   `json:"date,omitempty"`
	URL         string   `json:"url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Seed provides a small built-in corpus so the backend answers something
// useful before a real export is configured.
func Seed() []Document {
	return []Document{
		{
			ID:      "blog-ai-and-democracy-1",
			Kind:    KindBlogPostChunk,
			Title:   "Reboot Democracy in the Age of AI",
			Summary: "Why we believe AI can help institutions listen to and engage with residents at scale.",
			Content: "Emboldened by the advent of generative AI, we are excited about the future possibilities for reimagining democracy in practice and at scale. " +
				"Public institutions can use AI to summarize public comments, translate participation materials and make government more responsive.",
			Authors: []string{"Beth Simone Noveck"},
			Date:    "2023-05-01",
			URL:     "https://rebootdemocracy.ai/blog/reboot-democracy-in-the-age-of-ai",
			Tags:    []string{"AI", "Democracy", "Public Engagement"},
		},
		{
			ID:      "blog-participatory-budgeting-1",
			Kind:    KindBlogPostChunk,
			Title:   "Participatory Budgeting Meets Generative AI",
			Summary: "Cities are experimenting with AI tools to help residents propose and deliberate over budget ideas.",
			Content: "Participatory budgeting lets residents decide how to spend part of a public budget. " +
				"Generative AI can cluster thousands of proposals, flag duplicates and explain trade-offs in plain language.",
			Authors: []string{"Reboot Democracy Team"},
			Date:    "2024-02-14",
			URL:     "https://rebootdemocracy.ai/blog/participatory-budgeting-meets-generative-ai",
			Tags:    []string{"Participatory Budgeting", "Cities"},
		},
		{
			ID:          "news-legislation-tracker",
			Kind:        KindWeeklyNewsItem,
			Title:       "States Move to Regulate Government Use of AI",
			Summary:     "A round-up of state legislation on the use of artificial intelligence by public agencies.",
			Authors:     []string{"Reboot Democracy Team"},
			Publication: "Reboot Weekly",
			Date:        "2024-06-10",
			URL:         "https://rebootdemocracy.ai/newsthatcaughtoureye/states-regulate-government-ai",
			Tags:        []string{"Legislation", "Governance"},
		},
		{
			ID:          "news-innovateus-training",
			Kind:        KindWeeklyNewsItem,
			Title:       "InnovateUS Launches Free Responsible AI Course for Public Servants",
			Summary:     "Public servants can take a free, self-paced course on using generative AI responsibly at work.",
			Publication: "InnovateUS",
			Date:        "2024-03-21",
			URL:         "https://innovate-us.org/workshop-series/generative-ai-for-public-servants",
			Tags:        []string{"Training", "Public Servants"},
		},
	}
}
