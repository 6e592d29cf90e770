package store

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/PascalJPan/re-be/dbopen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return New(db)
}

func seedPost(t *testing.T, s *Store, id string, userID int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.CreatePost(ctx, id, userID, []byte("img"), `[{"x":0,"y":0,"t":0}]`, "#FF0000"); err != nil {
		t.Fatalf("create post: %v", err)
	}
}

func TestSchemaTables(t *testing.T) {
	// WHAT: Verify schema creates all tables without error.
	// WHY: Everything else in the layer builds on these tables.
	s := openTestStore(t)
	for _, table := range []string{"users", "posts", "comments"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestResolveUserCreatesOnce(t *testing.T) {
	// WHAT: ResolveUser auto-creates an account and is idempotent.
	// WHY: Identity comes from a header; first request must not 500.
	s := openTestStore(t)
	ctx := context.Background()

	u1, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	u2, err := s.ResolveUser(ctx, "ALICE")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("case-insensitive lookup created a second account: %d vs %d", u1.ID, u2.ID)
	}
	if u2.Username != "alice" {
		t.Errorf("stored username = %q, want original casing", u2.Username)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	// WHAT: Placeholder insert starts 'generating', FinishPost flips to
	// 'ready' with all outputs, FailPost records the error.
	// WHY: Readers poll status; a half-written 'ready' row breaks them.
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	seedPost(t, s, "post00000001", u.ID)

	status, _, err := s.PostStatus(ctx, "post00000001")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != StatusGenerating {
		t.Fatalf("status = %q, want generating", status)
	}

	res := GenerationResult{
		ID:               "post00000001",
		ImageData:        []byte("morphed"),
		StructuredObject: `{"audio_type":"music"}`,
		ImageAnalysis:    `{"vibe":"calm"}`,
		Features:         `{"point_count":2}`,
		CompiledPrompt:   "Instrumental music track.",
		Enhancement:      `{"morphing_prompt":"soften"}`,
		AudioFilename:    "post00000001.mp3",
	}
	if err := s.FinishPost(ctx, res, []byte("img")); err != nil {
		t.Fatalf("finish: %v", err)
	}

	p, err := s.GetPost(ctx, "post00000001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != StatusReady {
		t.Errorf("status = %q, want ready", p.Status)
	}
	if p.AudioFilename != "post00000001.mp3" {
		t.Errorf("audio_filename = %q", p.AudioFilename)
	}
	if p.Username != "alice" {
		t.Errorf("username = %q", p.Username)
	}

	img, err := s.PostImage(ctx, "post00000001")
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if string(img) != "morphed" {
		t.Errorf("image = %q, want morphed bytes", img)
	}

	if err := s.FailPost(ctx, "post00000001", "synthesis timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	status, msg, err := s.PostStatus(ctx, "post00000001")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != StatusFailed || msg != "synthesis timeout" {
		t.Errorf("status = %q/%q, want failed/synthesis timeout", status, msg)
	}
}

func TestPostStatusNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.PostStatus(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFeedPaginationAndCounts(t *testing.T) {
	// WHAT: Feed pages newest-first and carries per-post comment counts.
	s := openTestStore(t)
	ctx := context.Background()

	u, _ := s.ResolveUser(ctx, "alice")
	for _, id := range []string{"post00000001", "post00000002", "post00000003"} {
		seedPost(t, s, id, u.ID)
	}
	if _, err := s.CreateComment(ctx, "cmt000000001", "post00000003", u.ID, []byte("i"), "[]", "#00FF00"); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	page1, total, err := s.Feed(ctx, 1, 2)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 len = %d, want 2", len(page1))
	}
	if page1[0].ID != "post00000003" {
		t.Errorf("first = %s, want newest post", page1[0].ID)
	}
	if page1[0].CommentCount != 1 {
		t.Errorf("comment_count = %d, want 1", page1[0].CommentCount)
	}

	page2, _, err := s.Feed(ctx, 2, 2)
	if err != nil {
		t.Fatalf("feed page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Errorf("page2 len = %d, want 1", len(page2))
	}
}

func TestPostsByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice, _ := s.ResolveUser(ctx, "alice")
	bob, _ := s.ResolveUser(ctx, "bob")
	seedPost(t, s, "post00000001", alice.ID)
	seedPost(t, s, "post00000002", bob.ID)

	posts, total, err := s.PostsByUser(ctx, alice.ID, alice.Username, 1, 20)
	if err != nil {
		t.Fatalf("posts by user: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("total = %d, len = %d, want 1/1", total, len(posts))
	}
	if posts[0].Username != "alice" {
		t.Errorf("username = %q", posts[0].Username)
	}
}

func TestCommentLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, _ := s.ResolveUser(ctx, "alice")
	seedPost(t, s, "post00000001", u.ID)

	obj, status, err := s.ParentObject(ctx, "post00000001")
	if err != nil {
		t.Fatalf("parent object: %v", err)
	}
	if status != StatusGenerating || obj != "{}" {
		t.Errorf("parent = %q/%q, want {}/generating", obj, status)
	}

	if _, err := s.CreateComment(ctx, "cmt000000001", "post00000001", u.ID, []byte("i"), "[]", "#00FF00"); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := s.FinishComment(ctx, GenerationResult{
		ID:               "cmt000000001",
		StructuredObject: `{"relation_to_parent":"variation"}`,
		ImageAnalysis:    `{}`,
		Features:         `{}`,
		CompiledPrompt:   "Instrumental ambient track.",
		AudioFilename:    "cmt000000001.mp3",
	}); err != nil {
		t.Fatalf("finish comment: %v", err)
	}

	comments, err := s.CommentsForPost(ctx, "post00000001")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("len = %d, want 1", len(comments))
	}
	if comments[0].Status != StatusReady {
		t.Errorf("status = %q, want ready", comments[0].Status)
	}

	c, err := s.GetComment(ctx, "post00000001", "cmt000000001")
	if err != nil {
		t.Fatalf("get comment: %v", err)
	}
	if c.AudioFilename != "cmt000000001.mp3" {
		t.Errorf("audio_filename = %q", c.AudioFilename)
	}

	// Scoped lookup: wrong post must miss.
	if _, err := s.GetComment(ctx, "post99999999", "cmt000000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-post lookup err = %v, want ErrNotFound", err)
	}

	if err := s.DeleteComment(ctx, "cmt000000001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.CommentStatus(ctx, "cmt000000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("status after delete err = %v, want ErrNotFound", err)
	}
}

func TestResetForRecreate(t *testing.T) {
	// WHAT: Recreate drops comments, clears audio, returns to 'generating'.
	// WHY: Comments are musically tied to the old audio and cannot survive it.
	s := openTestStore(t)
	ctx := context.Background()

	u, _ := s.ResolveUser(ctx, "alice")
	seedPost(t, s, "post00000001", u.ID)
	if err := s.FinishPost(ctx, GenerationResult{
		ID: "post00000001", ImageData: []byte("m"),
		StructuredObject: `{}`, ImageAnalysis: `{}`, Features: `{}`,
		AudioFilename: "post00000001.mp3",
	}, []byte("img")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	s.CreateComment(ctx, "cmt000000001", "post00000001", u.ID, []byte("i"), "[]", "#00FF00")
	s.FinishComment(ctx, GenerationResult{ID: "cmt000000001", StructuredObject: `{}`,
		ImageAnalysis: `{}`, Features: `{}`, AudioFilename: "cmt000000001.mp3"})

	audio, err := s.ResetForRecreate(ctx, "post00000001")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(audio) != 1 || audio[0] != "cmt000000001.mp3" {
		t.Errorf("comment audio = %v", audio)
	}

	status, _, _ := s.PostStatus(ctx, "post00000001")
	if status != StatusGenerating {
		t.Errorf("status = %q, want generating", status)
	}
	comments, _ := s.CommentsForPost(ctx, "post00000001")
	if len(comments) != 0 {
		t.Errorf("comments survived recreate: %d", len(comments))
	}

	src, err := s.GetRecreateSource(ctx, "post00000001")
	if err != nil {
		t.Fatalf("recreate source: %v", err)
	}
	if string(src.OriginalImage) != "img" {
		t.Errorf("original image = %q, want pre-morph upload", src.OriginalImage)
	}
}

func TestDeletePostCollectsAudio(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, _ := s.ResolveUser(ctx, "alice")
	seedPost(t, s, "post00000001", u.ID)
	s.FinishPost(ctx, GenerationResult{
		ID: "post00000001", ImageData: []byte("m"),
		StructuredObject: `{}`, ImageAnalysis: `{}`, Features: `{}`,
		AudioFilename: "post00000001.mp3",
	}, []byte("img"))
	s.CreateComment(ctx, "cmt000000001", "post00000001", u.ID, []byte("i"), "[]", "#00FF00")
	s.FinishComment(ctx, GenerationResult{ID: "cmt000000001", StructuredObject: `{}`,
		ImageAnalysis: `{}`, Features: `{}`, AudioFilename: "cmt000000001.mp3"})

	audio, err := s.DeletePost(ctx, "post00000001")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(audio) != 2 {
		t.Fatalf("audio files = %v, want post + comment", audio)
	}

	if _, err := s.GetPost(ctx, "post00000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("post survived delete: %v", err)
	}
	if ok, _ := s.PostExists(ctx, "post00000001"); ok {
		t.Fatal("PostExists true after delete")
	}
}

func TestResetAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, _ := s.ResolveUser(ctx, "alice")
	seedPost(t, s, "post00000001", u.ID)

	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("reset all: %v", err)
	}
	_, total, err := s.Feed(ctx, 1, 20)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("user survived reset: %v", err)
	}
}
