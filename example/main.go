package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/tree"
	"github.com/meikuraledutech/tree/postgres"
	"github.com/meikuraledutech/tree/sqlite"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, an in-memory SQLite database otherwise.
	var store tree.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := postgres.Connect(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		store = pg
	} else {
		lite, err := sqlite.Open(":memory:")
		if err != nil {
			log.Fatalf("open: %v", err)
		}
		store = lite
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	engine := tree.NewEngine(store)

	// ── Roots ─────────────────────────────────────────────────────────
	roots, err := engine.AddChildren(ctx, nil, []*tree.Node{
		{ID: "courses", Data: json.RawMessage(`{"title": "Courses"}`)},
		{ID: "archive", Data: json.RawMessage(`{"title": "Archive"}`)},
	}, nil)
	if err != nil {
		log.Fatalf("add roots: %v", err)
	}
	fmt.Printf("added %d roots\n", len(roots))

	// ── Children ──────────────────────────────────────────────────────
	if _, err := engine.AddChildren(ctx, tree.Ptr("courses"), []*tree.Node{
		{ID: "go-101", Data: json.RawMessage(`{"title": "Go 101"}`)},
		{ID: "sql-101", Data: json.RawMessage(`{"title": "SQL 101"}`)},
	}, nil); err != nil {
		log.Fatalf("add courses: %v", err)
	}

	// A node without an id gets a generated one.
	lesson, err := engine.AddChild(ctx, tree.Ptr("go-101"), &tree.Node{
		Data: json.RawMessage(`{"title": "Goroutines"}`),
	}, nil)
	if err != nil {
		log.Fatalf("add lesson: %v", err)
	}
	fmt.Printf("added lesson: %s\n", lesson.ID)

	printOutline(ctx, engine)

	// ── Move a subtree ────────────────────────────────────────────────
	moved, err := engine.MoveTo(ctx, "go-101", tree.Ptr("archive"), nil)
	if err != nil {
		log.Fatalf("move: %v", err)
	}
	fmt.Printf("\nmoved %s under %s\n", moved.ID, *moved.ParentID)

	depth, err := engine.Depth(ctx, lesson.ID)
	if err != nil {
		log.Fatalf("depth: %v", err)
	}
	fmt.Printf("lesson depth: %d\n", depth)

	ancestors, err := engine.Ancestors(ctx, lesson.ID, false)
	if err != nil {
		log.Fatalf("ancestors: %v", err)
	}
	fmt.Println("\nancestors:")
	printJSON(ancestors)

	// Moving a node under its own descendant is rejected.
	if _, err := engine.MoveTo(ctx, "archive", tree.Ptr(lesson.ID), nil); err != nil {
		fmt.Printf("\nrejected: %v\n", err)
	}

	printOutline(ctx, engine)

	// ── Nested view ───────────────────────────────────────────────────
	forest, err := engine.Tree(ctx, tree.Ptr("archive"))
	if err != nil {
		log.Fatalf("tree: %v", err)
	}
	fmt.Println("\narchive:")
	printJSON(forest)

	// ── Cleanup ───────────────────────────────────────────────────────
	count, err := engine.DeleteSubtree(ctx, "archive", true, true)
	if err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Printf("\ndeleted %d nodes\n", count)
}

func printOutline(ctx context.Context, engine *tree.Engine) {
	forest, err := engine.Tree(ctx, nil)
	if err != nil {
		log.Fatalf("tree: %v", err)
	}
	fmt.Println()
	if err := tree.Render(os.Stdout, forest, nil); err != nil {
		log.Fatalf("render: %v", err)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
