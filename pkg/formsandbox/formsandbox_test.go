package formsandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hlop3z/formsandbox/internal/testutil"
)

const orderForm = `{
  "name": "order",
  "components": [
    {"type": "email", "key": "email", "unique": true, "validate": {"required": true}},
    {"type": "number", "key": "qty", "validate": {"min": 1}},
    {"type": "number", "key": "price"},
    {"type": "number", "key": "total", "calculateValue": "value = (data.qty || 0) * (data.price || 0)"},
    {"type": "captcha", "key": "captcha"}
  ]
}`

const feedbackYAML = `
name: feedback
components:
  - type: textarea
    key: comment
    validate:
      required: true
`

// newClient builds a Client over a temp forms dir and an in-memory store.
func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "order.json", orderForm)
	testutil.WriteFile(t, dir, "feedback.yaml", feedbackYAML)

	opts = append([]Option{
		WithFormsDir(dir),
		WithDatabaseURL(testutil.SQLiteURL(t)),
		WithTimeout(2 * time.Second),
	}, opts...)
	client, err := New(opts...)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { client.Close() })
	testutil.AssertNoError(t, client.Migrate(context.Background()))
	return client
}

// ===========================================================================
// Client Setup Tests
// ===========================================================================

func TestClient_Defaults(t *testing.T) {
	client, err := New()
	testutil.AssertNoError(t, err)
	defer client.Close()

	cfg := client.Config()
	testutil.AssertEqual(t, cfg.Timeout, 5*time.Second)
	testutil.AssertEqual(t, cfg.CaptchaTTL, 10*time.Minute)

	if _, err := client.Form("x"); !errors.Is(err, ErrNoFormsDir) {
		t.Errorf("Form() without dir = %v", err)
	}
	if _, err := client.IssueCaptcha(context.Background(), "x"); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("IssueCaptcha() without store = %v", err)
	}
	if _, err := client.PurgeCaptchas(context.Background()); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("PurgeCaptchas() without store = %v", err)
	}
	if len(client.Bundles()) == 0 {
		t.Error("no bundles registered")
	}
}

func TestClient_Forms(t *testing.T) {
	client := newClient(t)

	names := client.Forms()
	if strings.Join(names, ",") != "feedback,order" {
		t.Fatalf("Forms() = %v", names)
	}

	_, err := client.Form("ordr")
	var fe *FormError
	if !errors.As(err, &fe) || !errors.Is(err, ErrFormNotFound) {
		t.Fatalf("Form(ordr) = %v", err)
	}
	testutil.AssertEqual(t, fe.Suggestion, "order")
}

func TestClient_Fingerprint(t *testing.T) {
	client := newClient(t)

	a, err := client.Fingerprint()
	testutil.AssertNoError(t, err)
	b, err := client.Fingerprint()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, a.Root, b.Root)
	if len(a.Bundles) != len(client.Bundles()) {
		t.Errorf("fingerprint covers %d bundles, want %d", len(a.Bundles), len(client.Bundles()))
	}
}

// ===========================================================================
// Evaluate Tests
// ===========================================================================

func TestClient_Evaluate(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	out, err := client.Evaluate(ctx, EvaluateRequest{
		Deps: []string{},
		Data: map[string]any{"a": 2, "b": 3},
		Code: "a * b",
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, fmt.Sprint(out), "6")

	_, err = client.Evaluate(ctx, EvaluateRequest{Code: "while (true) {}", Timeout: 50 * time.Millisecond})
	var ee *EvaluationError
	if !errors.As(err, &ee) || !ee.IsTimeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !errors.Is(err, ErrEvaluationFailed) {
		t.Error("EvaluationError must match ErrEvaluationFailed")
	}

	_, err = client.Evaluate(ctx, EvaluateRequest{Deps: []string{}, Code: "\n  null.x"})
	if !errors.As(err, &ee) || ee.Code != "E3001" || ee.Line != 2 {
		t.Errorf("script error = %#v", err)
	}

	if s := client.Stats(); s.Failed != 2 || s.TimedOut != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestClient_Process(t *testing.T) {
	client := newClient(t)
	f, err := client.Form("order")
	testutil.AssertNoError(t, err)

	sub := &Submission{Data: map[string]any{"qty": 3, "price": 4}}
	res, err := client.Process(context.Background(), f, sub)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, fmt.Sprint(res.Data["total"]), "12")
	if _, ok := sub.Data["total"]; ok {
		t.Error("Process modified the submission")
	}
}

// ===========================================================================
// Validate Tests
// ===========================================================================

func TestClient_ValidateAndCommit(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	submit := func(email string) (*Outcome, error) {
		token, err := client.IssueCaptcha(ctx, "order")
		testutil.AssertNoError(t, err)
		req := ValidateRequest{
			FormName:     "order",
			SubmissionID: email,
			Submission:   &Submission{Data: map[string]any{"email": email, "qty": 1, "captcha": token}},
		}
		out, err := client.Validate(ctx, req)
		if err == nil {
			testutil.AssertNoError(t, client.Commit(ctx, req, out))
		}
		return out, err
	}

	_, err := submit("a@example.com")
	testutil.AssertNoError(t, err)

	_, err = submit(" A@example.com")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Details) != 1 || ve.Details[0].Path != "email" || ve.Details[0].RuleName != "unique" {
		t.Errorf("details = %+v", ve.Details)
	}
}

func TestClient_ValidateRejects(t *testing.T) {
	client := newClient(t)

	_, err := client.Validate(context.Background(), ValidateRequest{
		FormName:   "feedback",
		Submission: &Submission{Data: map[string]any{}},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Details) != 1 || ve.Details[0].Path != "comment" {
		t.Fatalf("Validate() = %v", err)
	}

	_, err = client.Validate(context.Background(), ValidateRequest{FormName: "nope"})
	if !errors.Is(err, ErrFormNotFound) {
		t.Errorf("unknown form = %v", err)
	}
}

func TestClient_ValidateOpaqueFailure(t *testing.T) {
	client := newClient(t, WithTimeout(50*time.Millisecond))
	f, err := ParseForm([]byte(`{"components": [
	  {"type": "number", "key": "n", "calculateValue": "while (true) {}"}
	]}`))
	testutil.AssertNoError(t, err)

	_, err = client.Validate(context.Background(), ValidateRequest{Form: f, Submission: &Submission{}})
	if !errors.Is(err, ErrProcessingFailed) {
		t.Errorf("Validate() = %v, want ErrProcessingFailed", err)
	}
}

func TestClient_Fetcher(t *testing.T) {
	var seen FetchRequest
	client := newClient(t, WithFetcher(FetcherFunc(func(ctx context.Context, req FetchRequest) (any, error) {
		seen = req
		return []any{"red", "green"}, nil
	})))
	f, err := ParseFormYAML([]byte(`
components:
  - type: datasource
    key: colors
    fetch:
      url: https://example.com/colors
`))
	testutil.AssertNoError(t, err)

	out, err := client.Validate(context.Background(), ValidateRequest{
		FormName:   "palette",
		Form:       f,
		Submission: &Submission{},
		Token:      "tok",
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, seen.FormID, "palette")
	testutil.AssertEqual(t, seen.Token, "tok")
	testutil.AssertEqual(t, fmt.Sprint(out.Data["colors"]), "[red green]")
}

// ===========================================================================
// Render Tests
// ===========================================================================

func TestClient_Render(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	out, err := client.Render(ctx, "Hi {{ name | upper }}", map[string]any{"name": "ada"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, "Hi ADA")

	f, err := client.Form("order")
	testutil.AssertNoError(t, err)
	out, err = client.RenderSubmission(ctx, "{{ form.name }}: {{ data.qty }}", f, &Submission{Data: map[string]any{"qty": 2}})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out, "order: 2")

	_, err = client.Render(ctx, "{{ x | nope }}", nil)
	if !errors.Is(err, ErrEvaluationFailed) {
		t.Errorf("unknown filter = %v", err)
	}
}

// ===========================================================================
// Error Tests
// ===========================================================================

func TestEvaluationError_Error(t *testing.T) {
	err := &EvaluationError{Code: "E3001", Message: "boom", Component: "rows[0].x", Stage: "calculateValue", Line: 1, Column: 4}
	testutil.AssertEqual(t, err.Error(), "formsandbox: [E3001] rows[0].x.calculateValue: boom (line 1, column 4)")

	err = &EvaluationError{Code: "E3002", Message: "timed out"}
	testutil.AssertEqual(t, err.Error(), "formsandbox: [E3002] timed out")
}

func TestEvaluationErrorPassThrough(t *testing.T) {
	plain := errors.New("plain")
	if evaluationError(plain) != plain {
		t.Error("uncoded errors must pass through")
	}
	if evaluationError(nil) != nil {
		t.Error("nil must stay nil")
	}
}
