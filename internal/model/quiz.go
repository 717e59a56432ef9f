package model

// Quiz is a named set of questions about one kind of disaster.
type Quiz struct {
	ID           int64      `json:"id"           yaml:"-"`
	Title        string     `json:"title"        yaml:"title"`
	DisasterType string     `json:"disasterType" yaml:"disasterType"`
	Questions    []Question `json:"questions,omitempty" yaml:"questions"`
}

// Question belongs to a quiz and owns its choices. Exactly one choice is
// correct and Points is always positive.
type Question struct {
	ID      int64    `json:"id"     yaml:"-"`
	QuizID  int64    `json:"quizId" yaml:"-"`
	Text    string   `json:"text"   yaml:"text"`
	Points  int      `json:"points" yaml:"points"`
	Choices []Choice `json:"choices" yaml:"choices"`
}

type Choice struct {
	ID         int64  `json:"id"         yaml:"-"`
	QuestionID int64  `json:"questionId" yaml:"-"`
	Text       string `json:"text"       yaml:"text"`
	IsCorrect  bool   `json:"isCorrect,omitempty" yaml:"correct"`
}

// QuestionIDs returns the ids of the quiz's questions in order.
func (q *Quiz) QuestionIDs() []int64 {
	ids := make([]int64, 0, len(q.Questions))
	for _, question := range q.Questions {
		ids = append(ids, question.ID)
	}
	return ids
}

// Redacted returns a deep copy of the quiz with every correct-choice flag
// cleared, suitable for sending to players.
func (q *Quiz) Redacted() *Quiz {
	out := &Quiz{
		ID:           q.ID,
		Title:        q.Title,
		DisasterType: q.DisasterType,
		Questions:    make([]Question, len(q.Questions)),
	}
	for i, question := range q.Questions {
		choices := make([]Choice, len(question.Choices))
		for j, c := range question.Choices {
			c.IsCorrect = false
			choices[j] = c
		}
		question.Choices = choices
		out.Questions[i] = question
	}
	return out
}
