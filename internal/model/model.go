package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleUser is the default role of a freshly registered account.
	UserRoleUser UserRole = "user"
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r UserRole) bool {
	switch r {
	case UserRoleUser, UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	DisplayName  string    `bson:"display_name" json:"displayName"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Role         UserRole  `bson:"role" json:"role"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// AnswerOption is one choice of a question.
type AnswerOption struct {
	Text      string `bson:"text" json:"text"`
	IsCorrect bool   `bson:"is_correct" json:"isCorrect"`
}

// Question is a bank question with its ordered options.
type Question struct {
	ID       string         `bson:"_id" json:"id"`
	Text     string         `bson:"text" json:"text"`
	Answers  []AnswerOption `bson:"answers" json:"answers"`
	Category string         `bson:"category,omitempty" json:"category,omitempty"`
	Group    string         `bson:"group,omitempty" json:"group,omitempty"`
}

// CorrectOption returns the first option flagged correct.
func (q Question) CorrectOption() (AnswerOption, bool) {
	for _, o := range q.Answers {
		if o.IsCorrect {
			return o, true
		}
	}
	return AnswerOption{}, false
}

// SectionQuestion is the weighted, exam-scoped reference to a bank question.
// Question is attached only when the exam was loaded resolved.
type SectionQuestion struct {
	ID         string    `bson:"id" json:"id"`
	QuestionID string    `bson:"question_id" json:"questionId"`
	Score      float64   `bson:"score" json:"score"`
	Question   *Question `bson:"-" json:"question,omitempty"`
}

// ExamSection groups section questions under a title.
type ExamSection struct {
	Title       string            `bson:"title" json:"title"`
	Description string            `bson:"description" json:"description"`
	Questions   []SectionQuestion `bson:"questions" json:"questions"`
}

// Exam is a timed assessment made of ordered sections.
type Exam struct {
	ID                  string        `bson:"_id" json:"id"`
	Name                string        `bson:"name" json:"name"`
	Description         string        `bson:"description" json:"description"`
	StartDate           time.Time     `bson:"start_date" json:"startDate"`
	EndDate             time.Time     `bson:"end_date" json:"endDate"`
	MaxAttempts         *int          `bson:"max_attempts,omitempty" json:"maxAttempts,omitempty"`
	Duration            *int          `bson:"duration,omitempty" json:"duration,omitempty"`
	MaxScore            *float64      `bson:"max_score,omitempty" json:"maxScore,omitempty"`
	PassScore           *float64      `bson:"pass_score,omitempty" json:"passScore,omitempty"`
	AutoDistributeScore bool          `bson:"auto_distribute_score" json:"autoDistributeScore"`
	ShowStudentResult   bool          `bson:"show_student_result" json:"showStudentResult"`
	DisplayResults      string        `bson:"display_results,omitempty" json:"displayResults,omitempty"`
	QuestionOrder       string        `bson:"question_order,omitempty" json:"questionOrder,omitempty"`
	QuestionsPerPage    int           `bson:"questions_per_page" json:"questionsPerPage"`
	Sections            []ExamSection `bson:"sections" json:"sections"`
	CreatedAt           time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time     `bson:"updated_at" json:"updatedAt"`
}

// StoredMaxScore returns the configured maxScore field, 0 when unset.
// It may disagree with the sum of weights used for scoring.
func (e Exam) StoredMaxScore() float64 {
	if e.MaxScore == nil {
		return 0
	}
	return *e.MaxScore
}

// DerivedMaxScore returns the sum of all section question weights.
func (e Exam) DerivedMaxScore() float64 {
	var total float64
	for _, s := range e.Sections {
		for _, sq := range s.Questions {
			total += sq.Score
		}
	}
	return total
}

// QuestionIDs returns the distinct bank question ids referenced by the exam, in order.
func (e Exam) QuestionIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range e.Sections {
		for _, sq := range s.Questions {
			if !seen[sq.QuestionID] {
				seen[sq.QuestionID] = true
				ids = append(ids, sq.QuestionID)
			}
		}
	}
	return ids
}

// WithoutAnswerKey returns a copy safe to show a student taking the exam.
func (e Exam) WithoutAnswerKey() Exam {
	out := e
	out.Sections = make([]ExamSection, len(e.Sections))
	for i, s := range e.Sections {
		sc := s
		sc.Questions = make([]SectionQuestion, len(s.Questions))
		for j, sq := range s.Questions {
			if sq.Question != nil {
				q := *sq.Question
				q.Answers = make([]AnswerOption, len(sq.Question.Answers))
				for k, o := range sq.Question.Answers {
					q.Answers[k] = AnswerOption{Text: o.Text}
				}
				sq.Question = &q
			}
			sc.Questions[j] = sq
		}
		out.Sections[i] = sc
	}
	return out
}

// SubmittedAnswer is one answer as sent by the client.
type SubmittedAnswer struct {
	SectionQuestionID string     `json:"sectionQuestionId"`
	Answer            string     `json:"answer"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// RecordedAnswer is one answer as persisted, including unanswered questions.
type RecordedAnswer struct {
	SectionQuestionID string    `bson:"section_question_id" json:"sectionQuestionId"`
	Answer            string    `bson:"answer" json:"answer"`
	Timestamp         time.Time `bson:"timestamp" json:"timestamp"`
}

// ExamResult is the immutable record of one submission.
type ExamResult struct {
	ID              string           `bson:"_id" json:"id"`
	StudentID       string           `bson:"student_id" json:"studentId"`
	ExamID          string           `bson:"exam_id" json:"examId"`
	Answers         []RecordedAnswer `bson:"answers" json:"answers"`
	StartTime       time.Time        `bson:"start_time" json:"startTime"`
	EndTime         time.Time        `bson:"end_time" json:"endTime"`
	TotalScore      float64          `bson:"total_score" json:"totalScore"`
	PercentageScore float64          `bson:"percentage_score" json:"percentageScore"`
	CreatedAt       time.Time        `bson:"created_at" json:"createdAt"`
}

// QuestionReport is the review entry of one section question.
type QuestionReport struct {
	SectionQuestionID string  `json:"sectionQuestionId"`
	QuestionID        string  `json:"questionId"`
	Question          string  `json:"question"`
	Answer            string  `json:"answer"`
	IsCorrect         bool    `json:"isCorrect"`
	Score             float64 `json:"score"`
}

// SectionReport groups question reports by section.
type SectionReport struct {
	Title     string           `json:"title"`
	Questions []QuestionReport `json:"questions"`
}

// ScoreReport is the breakdown returned to the submitting student.
type ScoreReport struct {
	ResultID        string          `json:"resultId"`
	TotalScore      float64         `json:"totalScore"`
	MaxScore        float64         `json:"maxScore"`
	PercentageScore float64         `json:"percentageScore"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	Duration        int             `json:"duration"`
	Sections        []SectionReport `json:"sections"`
}

// ResultStatus tags whether a result's exam still resolves.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultDeleted   ResultStatus = "deleted"
)

// ResultSummary is one row of a student's result history.
type ResultSummary struct {
	ResultID        string       `json:"resultId"`
	ExamID          string       `json:"examId"`
	ExamName        string       `json:"examName"`
	MaxScore        *float64     `json:"maxScore,omitempty"`
	Duration        *int         `json:"duration,omitempty"`
	Score           float64      `json:"score"`
	PercentageScore float64      `json:"percentageScore"`
	StartTime       time.Time    `json:"startTime"`
	EndTime         time.Time    `json:"endTime"`
	Status          ResultStatus `json:"status"`
}

// Participant is one student's entry in exam statistics.
type Participant struct {
	StudentID   string  `bson:"student_id" json:"studentId"`
	Username    string  `bson:"username" json:"username"`
	DisplayName string  `bson:"display_name" json:"displayName"`
	Email       string  `bson:"email" json:"email"`
	Score       float64 `bson:"total_score" json:"score"`
}

// ExamStatistics aggregates all results of one exam.
type ExamStatistics struct {
	ExamID            string        `json:"examId"`
	PassScore         float64       `json:"passScore"`
	TotalParticipants int           `json:"totalParticipants"`
	AverageScore      float64       `json:"averageScore"`
	HighestScore      float64       `json:"highestScore"`
	LowestScore       float64       `json:"lowestScore"`
	PassCount         int           `json:"passCount"`
	PassPercentage    float64       `json:"passPercentage"`
	Participants      []Participant `json:"participants"`
}

// ServerConfig holds runtime parameters of the HTTP server set via flags.
type ServerConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	Lang        string   // default UI language for error messages
	CORSOrigins []string // allowed browser origins
}
