package interviewer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/prepwise/internal/domain"
)

func questionPrompt(req QuestionRequest) string {
	var b strings.Builder
	b.WriteString("Prepare questions for a job interview.\n")
	fmt.Fprintf(&b, "The job role is %s.\n", req.Role)
	fmt.Fprintf(&b, "The job experience level is %s.\n", req.Level)
	fmt.Fprintf(&b, "The tech stack used in the job is: %s.\n", strings.Join(req.TechStack, ", "))
	fmt.Fprintf(&b, "The focus between behavioural and technical questions should lean towards: %s.\n", req.Type)
	fmt.Fprintf(&b, "The amount of questions required is: %d.\n", req.Amount)
	b.WriteString("Please return only the questions, without any additional text.\n")
	b.WriteString("The questions are going to be read by a voice assistant so do not use \"/\" or \"*\" or any other special characters which might break the voice assistant.\n")
	b.WriteString(`Return the questions formatted like this: ["Question 1", "Question 2", "Question 3"]`)
	return b.String()
}

func feedbackPrompt(in FeedbackInput) string {
	var b strings.Builder
	b.WriteString("You are an AI interviewer analyzing a mock interview. ")
	b.WriteString("Your task is to evaluate the candidate based on structured categories. ")
	b.WriteString("Be thorough and detailed in your analysis. Don't be lenient with the candidate. ")
	b.WriteString("If there are mistakes or areas for improvement, point them out.\n")
	if in.Role != "" {
		fmt.Fprintf(&b, "The candidate interviewed for the role: %s.\n", in.Role)
	}
	b.WriteString("Transcript:\n")
	for _, e := range in.Transcript {
		fmt.Fprintf(&b, "- %s: %s\n", e.Role, e.Content)
	}
	b.WriteString("\nPlease score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:\n")
	for _, c := range domain.FeedbackCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nRespond with a JSON object with the fields totalScore (number), ")
	b.WriteString("categoryScores (array of {name, score, comment}), strengths (array of strings), ")
	b.WriteString("areasForImprovement (array of strings) and finalAssessment (string).")
	return b.String()
}

// stripFence removes a surrounding Markdown code fence from model output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseQuestions(text string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(stripFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuestions
	}
	return questions, nil
}

func parseAssessment(text string) (*Assessment, error) {
	var a Assessment
	if err := json.Unmarshal([]byte(stripFence(text)), &a); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	return normalizeAssessment(&a), nil
}

// normalizeAssessment clamps scores and orders categories canonically.
// Unknown categories are dropped and missing ones are filled with zero.
func normalizeAssessment(a *Assessment) *Assessment {
	byName := make(map[string]domain.CategoryScore, len(a.CategoryScores))
	for _, c := range a.CategoryScores {
		byName[strings.ToLower(strings.TrimSpace(c.Name))] = c
	}

	scores := make([]domain.CategoryScore, 0, len(domain.FeedbackCategories))
	for _, name := range domain.FeedbackCategories {
		c := byName[strings.ToLower(name)]
		scores = append(scores, domain.CategoryScore{
			Name:    name,
			Score:   domain.ClampScore(c.Score),
			Comment: c.Comment,
		})
	}

	return &Assessment{
		TotalScore:          domain.ClampScore(a.TotalScore),
		CategoryScores:      scores,
		Strengths:           a.Strengths,
		AreasForImprovement: a.AreasForImprovement,
		FinalAssessment:     strings.TrimSpace(a.FinalAssessment),
	}
}
