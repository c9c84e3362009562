package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meikuraledutech/tree"
)

type nodeRequest struct {
	ID       string          `json:"id"`
	ParentID *string         `json:"parent_id"`
	Position *int            `json:"position"`
	Data     json.RawMessage `json:"data"`
}

func (r nodeRequest) node() *tree.Node {
	return &tree.Node{ID: r.ID, ParentID: r.ParentID, Data: r.Data}
}

type moveRequest struct {
	ParentID *string `json:"parent_id"`
	Position *int    `json:"position"`
}

type childrenRequest struct {
	Position *int          `json:"position"`
	Children []nodeRequest `json:"children"`
}

// fail maps engine errors to status codes.
func fail(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tree.ErrInvalidOperation):
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, tree.ErrNodeNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, tree.ErrNodeExists):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func queryBool(c fiber.Ctx, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

func queryInt(c fiber.Ctx, key string) (*int, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parentParam reads the :id route parameter, where "root" names the root
// group.
func parentParam(c fiber.Ctx) *string {
	id := c.Params("id")
	if id == "root" {
		return nil
	}
	return &id
}

func newApp(store tree.Store, engine *tree.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) *fiber.App {
	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	app.Get("/check", func(c fiber.Ctx) error {
		var violations []tree.Violation
		err := store.InTx(c.Context(), func(q tree.Querier) error {
			found, err := tree.Verify(c.Context(), q)
			violations = found
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		if len(violations) > 0 {
			logger.Warn("tree check failed", "violations", len(violations))
			return c.Status(409).JSON(fiber.Map{"violations": violations})
		}
		return c.JSON(fiber.Map{"violations": []tree.Violation{}})
	})

	// ── Tree ──────────────────────────────────────────────────────────
	app.Get("/tree", func(c fiber.Ctx) error {
		var root *string
		if id := c.Query("root"); id != "" {
			root = &id
		}
		forest, err := engine.Tree(c.Context(), root)
		if err != nil {
			return fail(c, err)
		}
		if forest == nil {
			forest = []*tree.TreeNode{}
		}
		return c.JSON(forest)
	})

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/nodes", func(c fiber.Ctx) error {
		var req nodeRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		n, err := engine.Create(c.Context(), req.node(), req.Position)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(n)
	})

	app.Get("/nodes/:id", func(c fiber.Ctx) error {
		n, err := engine.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		if n == nil {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		return c.JSON(n)
	})

	app.Put("/nodes/:id/move", func(c fiber.Ctx) error {
		var req moveRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		n, err := engine.MoveTo(c.Context(), c.Params("id"), req.ParentID, req.Position)
		if err != nil {
			return fail(c, err)
		}
		if n == nil {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		return c.JSON(n)
	})

	app.Delete("/nodes/:id", func(c fiber.Ctx) error {
		id, hard := c.Params("id"), queryBool(c, "hard")
		if queryBool(c, "subtree") {
			count, err := engine.DeleteSubtree(c.Context(), id, queryBool(c, "with_self"), hard)
			if err != nil {
				return fail(c, err)
			}
			return c.JSON(fiber.Map{"deleted": count})
		}
		if err := engine.Delete(c.Context(), id, hard); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	app.Post("/nodes/:id/restore", func(c fiber.Ctx) error {
		n, err := engine.Restore(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		if n == nil {
			return c.Status(404).JSON(fiber.Map{"error": "node not found"})
		}
		return c.JSON(n)
	})

	app.Post("/nodes/:id/siblings", func(c fiber.Ctx) error {
		var req nodeRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		ref := &tree.Node{ID: c.Params("id")}
		n, err := engine.AddSibling(c.Context(), ref, req.node(), req.Position)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"node": n, "ref": ref})
	})

	// ── Groups ────────────────────────────────────────────────────────
	// :id is a parent node id, or "root" for the root group.
	app.Get("/nodes/:id/children", func(c fiber.Ctx) error {
		nodes, err := engine.Children(c.Context(), parentParam(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(nodes)
	})

	app.Post("/nodes/:id/children", func(c fiber.Ctx) error {
		var req childrenRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		children := make([]*tree.Node, 0, len(req.Children))
		for _, r := range req.Children {
			children = append(children, r.node())
		}
		placed, err := engine.AddChildren(c.Context(), parentParam(c), children, req.Position)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(placed)
	})

	app.Delete("/nodes/:id/children", func(c fiber.Ctx) error {
		from, err := queryInt(c, "from")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid from"})
		}
		to, err := queryInt(c, "to")
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid to"})
		}
		if from == nil {
			from = tree.Ptr(0)
		}
		removed, err := engine.RemoveChildren(c.Context(), parentParam(c), *from, to, queryBool(c, "hard"))
		if err != nil {
			return fail(c, err)
		}
		if removed == nil {
			removed = []tree.Node{}
		}
		return c.JSON(removed)
	})

	// ── Closure ───────────────────────────────────────────────────────
	app.Get("/nodes/:id/ancestors", func(c fiber.Ctx) error {
		rows, err := engine.Ancestors(c.Context(), c.Params("id"), queryBool(c, "self"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(rows)
	})

	app.Get("/nodes/:id/descendants", func(c fiber.Ctx) error {
		rows, err := engine.Descendants(c.Context(), c.Params("id"), queryBool(c, "self"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(rows)
	})

	app.Get("/nodes/:id/depth", func(c fiber.Ctx) error {
		depth, err := engine.Depth(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "depth": depth})
	})

	// ── Metrics ───────────────────────────────────────────────────────
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return app
}
