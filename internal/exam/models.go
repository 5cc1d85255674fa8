package exam

type Exam struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	InstructorID    *int64 `json:"instructor_id,omitempty"`
	InstructorName  string `json:"instructor_name,omitempty"`
	ScheduledAt     *int64 `json:"scheduled_at,omitempty"` // unix seconds
	CreatedAt       int64  `json:"created_at"`
}

type Question struct {
	ID      int64  `json:"id"`
	ExamID  int64  `json:"exam_id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	// Stripped when serving to students.
	CorrectOption string  `json:"correct_option,omitempty"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
	CreatedAt     int64   `json:"created_at,omitempty"`
}

func ValidOption(opt string) bool {
	switch opt {
	case "A", "B", "C", "D":
		return true
	}
	return false
}
