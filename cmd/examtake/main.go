package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/examhall/examhall/internal/attempt"
)

func main() {
	var (
		server     = flag.String("server", "http://localhost:8080", "examd base URL")
		email      = flag.String("email", "", "account email")
		password   = flag.String("password", "", "account password")
		examID     = flag.Int64("exam", 0, "exam id to attempt")
		stateDir   = flag.String("state-dir", defaultStateDir(), "directory for local attempt state")
		duration   = flag.Duration("duration", attempt.DefaultDuration, "attempt window")
		useExamDur = flag.Bool("use-exam-duration", false, "honor the exam's configured duration instead of the fixed window")
	)
	flag.Parse()

	if *email == "" || *password == "" || *examID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := &apiClient{base: strings.TrimRight(*server, "/"), http: &http.Client{Timeout: 30 * time.Second}}
	user, err := client.login(*email, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	payload, err := client.fetchQuestions(*examID)
	if err != nil {
		log.Fatalf("load exam: %v", err)
	}
	if len(payload.Questions) == 0 {
		log.Fatalf("exam %d has no questions", *examID)
	}

	window := *duration
	if *useExamDur && payload.Exam.DurationMinutes > 0 {
		window = time.Duration(payload.Exam.DurationMinutes) * time.Minute
	}

	store, err := attempt.NewFSStore(*stateDir)
	if err != nil {
		log.Fatalf("state dir: %v", err)
	}

	engine := attempt.NewEngine(*examID, user.ID, store, client, attempt.Config{
		Duration: window,
		OnTick:   printCountdown(),
	})
	if err := engine.Start(); err != nil {
		log.Fatalf("start attempt: %v", err)
	}

	fmt.Printf("%s — %d questions, %s on the clock\n", payload.Exam.Title, len(payload.Questions), window)
	fmt.Println(`commands: a/b/c/d answer, n next, p previous, submit, quit`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	go prompt(ctx, engine, payload.Questions, cancel)

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("attempt: %v", err)
	}
	if engine.Submitted() {
		fmt.Printf("\nsubmitted — see /api/submissions/%d/results/%d\n", *examID, user.ID)
	}
}

func prompt(ctx context.Context, engine *attempt.Engine, questions []questionView, cancel context.CancelFunc) {
	idx := 0
	show := func() {
		q := questions[idx]
		answers := engine.Answers()
		fmt.Printf("\n[%d/%d] %s (%.3g marks)\n  A. %s\n  B. %s\n  C. %s\n  D. %s\n",
			idx+1, len(questions), q.Text, q.Marks, q.OptionA, q.OptionB, q.OptionC, q.OptionD)
		if sel, ok := answers[q.ID]; ok {
			fmt.Printf("  current answer: %s\n", sel)
		}
		fmt.Print("> ")
	}
	show()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch cmd := strings.ToLower(strings.TrimSpace(sc.Text())); cmd {
		case "a", "b", "c", "d":
			if err := engine.Select(questions[idx].ID, strings.ToUpper(cmd)); err != nil {
				fmt.Println(err)
				continue
			}
			if idx < len(questions)-1 {
				idx++
			}
			show()
		case "n":
			if idx < len(questions)-1 {
				idx++
			}
			show()
		case "p":
			if idx > 0 {
				idx--
			}
			show()
		case "submit":
			err := engine.Submit(ctx)
			switch {
			case err == nil, errors.Is(err, attempt.ErrSubmitted):
				return
			case errors.Is(err, attempt.ErrSubmitInFlight):
				fmt.Println("submission already in progress")
			default:
				// local state is kept, so the student can retry
				fmt.Printf("submit failed: %v\n", err)
			}
		case "quit":
			cancel()
			return
		default:
			show()
		}
	}
}

// printCountdown reports the remaining time once per minute, and every ten
// seconds inside the final minute.
func printCountdown() func(time.Duration) {
	var last time.Duration = -1
	return func(rem time.Duration) {
		rounded := rem.Truncate(time.Minute)
		if rem < time.Minute {
			rounded = rem.Truncate(10 * time.Second)
		}
		if rounded != last {
			last = rounded
			fmt.Printf("\n%s remaining\n> ", rem.Truncate(time.Second))
		}
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".examtake"
	}
	return home + "/.examtake"
}

/* ---------------- HTTP client ---------------- */

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

type userView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type examView struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
}

type questionView struct {
	ID      int64   `json:"id"`
	Text    string  `json:"text"`
	OptionA string  `json:"option_a"`
	OptionB string  `json:"option_b"`
	OptionC string  `json:"option_c"`
	OptionD string  `json:"option_d"`
	Marks   float64 `json:"marks"`
}

type questionsPayload struct {
	Exam      examView       `json:"exam"`
	Questions []questionView `json:"questions"`
}

func (c *apiClient) login(email, password string) (userView, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	var out struct {
		Token string   `json:"token"`
		User  userView `json:"user"`
	}
	if err := c.do(http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return userView{}, err
	}
	c.token = out.Token
	return out.User, nil
}

func (c *apiClient) fetchQuestions(examID int64) (questionsPayload, error) {
	var out questionsPayload
	err := c.do(http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", examID), nil, &out)
	return out, err
}

// Submit implements attempt.Submitter against the server's ledger.
func (c *apiClient) Submit(ctx context.Context, examID, studentID int64, answers map[int64]string) error {
	type answerInput struct {
		QuestionID   int64  `json:"question_id"`
		ChosenOption string `json:"chosen_option"`
	}
	list := make([]answerInput, 0, len(answers))
	for qid, opt := range answers {
		list = append(list, answerInput{QuestionID: qid, ChosenOption: opt})
	}
	body, _ := json.Marshal(map[string]any{"answers": list})

	var out struct {
		SubmissionID int64   `json:"submission_id"`
		Score        float64 `json:"score"`
	}
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/submissions/%d/submit", examID), body, &out); err != nil {
		return err
	}
	fmt.Printf("\nscore: %g (submission %d)\n", out.Score, out.SubmissionID)
	return nil
}

func (c *apiClient) do(method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
			}
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
