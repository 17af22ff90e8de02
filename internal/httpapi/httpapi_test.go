package httpapi

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/retrieval"
)

func mustRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		t.Fatalf("http.NewRequest: %v", err)
	}
	return req
}

func TestSourceRequestToModelDefaultsEnabledAndPagination(t *testing.T) {
	req := sourceRequest{Name: "moe", BaseURL: "https://moe.example", Dialect: "generic"}
	src := req.toModel()

	if !src.PaginationEnabled {
		t.Fatalf("expected pagination_enabled to default true")
	}
	if !src.Enabled {
		t.Fatalf("expected enabled to default true")
	}
}

func TestSourceRequestToModelHonorsExplicitFalse(t *testing.T) {
	f := false
	req := sourceRequest{Name: "moe", PaginationEnabled: &f, Enabled: &f}
	src := req.toModel()

	if src.PaginationEnabled {
		t.Fatalf("expected explicit false to override the pagination default")
	}
	if src.Enabled {
		t.Fatalf("expected explicit false to override the enabled default")
	}
}

func TestChatFormatMapsIntentKinds(t *testing.T) {
	cases := []struct {
		kind retrieval.IntentKind
		want string
	}{
		{retrieval.IntentComparison, "comparison"},
		{retrieval.IntentCount, "count"},
		{retrieval.IntentList, "list"},
		{retrieval.IntentQA, "text"},
	}
	for _, c := range cases {
		if got := chatFormat(c.kind); got != c.want {
			t.Errorf("chatFormat(%v) = %q, want %q", c.kind, got, c.want)
		}
	}
}

func newTestApp(path string, handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get(path, handler)
	return app
}

func TestWriteErrorMapsAppErrToHTTPStatus(t *testing.T) {
	app := newTestApp("/x", func(c *fiber.Ctx) error {
		return writeError(c, apperr.New(apperr.KindAccessDenied, "restricted to institution members"))
	})

	resp, err := app.Test(mustRequest(t, "/x"))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("got status %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
}

func TestWriteErrorFallsBackTo500ForPlainErrors(t *testing.T) {
	app := newTestApp("/x", func(c *fiber.Ctx) error {
		return writeError(c, fiber.ErrTeapot)
	})

	resp, err := app.Test(mustRequest(t, "/x"))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", resp.StatusCode, fiber.StatusInternalServerError)
	}
}

func TestForbiddenAndBadRequestSetExpectedStatus(t *testing.T) {
	app := newTestApp("/forbidden", func(c *fiber.Ctx) error {
		return forbidden(c, "elevated clearance required")
	})
	resp, err := app.Test(mustRequest(t, "/forbidden"))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("got status %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}

	app2 := newTestApp("/bad", func(c *fiber.Ctx) error {
		return badRequest(c, "doc_ids is required")
	})
	resp2, err := app2.Test(mustRequest(t, "/bad"))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp2.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("got status %d, want %d", resp2.StatusCode, fiber.StatusBadRequest)
	}
}
