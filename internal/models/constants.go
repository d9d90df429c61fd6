package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n---\n"
	UploadsPrefix    = "/uploads/"
	NoInformation    = "No information found."
	MinAnswerLength  = 10
)

const (
	SectionBenefits    = "Benefits"
	SectionProcess     = "Process"
	SectionEligibility = "Eligibility"
	SectionDocuments   = "Documents"
)

// SummarySections lists the summary categories in display order.
var SummarySections = []string{SectionBenefits, SectionProcess, SectionEligibility, SectionDocuments}

// SummaryPrompts are the fixed questions asked for each summary section.
var SummaryPrompts = map[string]string{
	SectionBenefits:    "Summarize the key benefits of the scheme.",
	SectionProcess:     "Describe the application process for the scheme.",
	SectionEligibility: "What are the eligibility criteria for this scheme?",
	SectionDocuments:   "List documents required to apply.",
}

var (
	SystemPrompt = "You are a research assistant for government schemes. Answer only from the provided context."

	GroundingPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`
)
