package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/retrieval"
)

type citation struct {
	DocID          string  `json:"doc_id"`
	Source         string  `json:"source"`
	ApprovalStatus string  `json:"approval_status"`
	Score          float64 `json:"score"`
}

// listItem is the closed shape of one entry in a list/comparison result,
// distinct from citation since a list answer names documents rather than
// grounding a prose answer in them.
type listItem struct {
	DocID  string `json:"doc_id"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

func (h *handlers) chatQuery(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		ThreadID string `json:"thread_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}

	user := userFromCtx(c)
	results, err := h.d.Retriever.Retrieve(c.Context(), req.Question, user)
	if err != nil {
		return writeError(c, err)
	}

	intent := retrieval.ClassifyIntent(req.Question)
	citations := make([]citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, citation{
			DocID: r.DocID, Source: r.Filename,
			ApprovalStatus: string(r.ApprovalStatus), Score: r.Confidence,
		})
	}

	confidence := 0.0
	if len(results) > 0 {
		confidence = results[0].Confidence
	}

	return c.JSON(fiber.Map{
		"format":     chatFormat(intent.Kind),
		"citations":  citations,
		"confidence": confidence,
		"data":       chatData(intent.Kind, results),
	})
}

func chatFormat(kind retrieval.IntentKind) string {
	switch kind {
	case retrieval.IntentComparison:
		return "comparison"
	case retrieval.IntentCount:
		return "count"
	case retrieval.IntentList:
		return "list"
	default:
		return "text"
	}
}

// chatData builds the closed, format-specific payload named by intent.Kind
// rather than overloading a single {answer, citations} shape for every
// query type: a count query gets a count, a list query gets the documents
// it names, and only a plain QA query gets prose.
func chatData(kind retrieval.IntentKind, results []retrieval.ResultChunk) fiber.Map {
	switch kind {
	case retrieval.IntentCount:
		return fiber.Map{"count": len(results)}

	case retrieval.IntentList, retrieval.IntentComparison:
		items := make([]listItem, 0, len(results))
		for _, r := range results {
			items = append(items, listItem{DocID: r.DocID, Title: r.Filename, Source: r.Filename})
		}
		return fiber.Map{"items": items}

	default:
		var answer string
		if len(results) > 0 {
			answer = results[0].Text
		}
		return fiber.Map{"answer": answer}
	}
}
