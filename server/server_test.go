package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/PascalJPan/re-be/dbopen"
	"github.com/PascalJPan/re-be/intent"
	"github.com/PascalJPan/re-be/pipeline"
	"github.com/PascalJPan/re-be/store"
	_ "modernc.org/sqlite"
)

// fakeRunner records launched jobs instead of generating anything.
type fakeRunner struct {
	posts     []pipeline.Job
	recreates []pipeline.Job
	comments  []pipeline.Job
	parents   []*intent.Intent
}

func (f *fakeRunner) RunPost(_ context.Context, job pipeline.Job)     { f.posts = append(f.posts, job) }
func (f *fakeRunner) RunRecreate(_ context.Context, job pipeline.Job) { f.recreates = append(f.recreates, job) }
func (f *fakeRunner) RunComment(_ context.Context, job pipeline.Job, parent *intent.Intent) {
	f.comments = append(f.comments, job)
	f.parents = append(f.parents, parent)
}

// fakeAudio records removals against a real temp dir.
type fakeAudio struct {
	dir     string
	removed []string
}

func (f *fakeAudio) Dir() string { return f.dir }
func (f *fakeAudio) Remove(filename string) error {
	f.removed = append(f.removed, filename)
	return nil
}

type testEnv struct {
	ts     *httptest.Server
	st     *store.Store
	runner *fakeRunner
	audio  *fakeAudio
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.New(db)
	runner := &fakeRunner{}
	audio := &fakeAudio{dir: t.TempDir()}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := New(Config{MaxImageMB: 1}, st, runner, audio, logger)
	srv.launch = func(fn func()) { fn() } // run pipelines inline in tests

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, st: st, runner: runner, audio: audio}
}

const validPoints = `[{"x":0.1,"y":0.1,"t":0},{"x":0.5,"y":0.6,"t":120},{"x":0.8,"y":0.2,"t":250}]`

// multipartUpload builds the create-post/comment form body.
func multipartUpload(t *testing.T, image []byte, colorHex, points string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "drawing.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(image)
	mw.WriteField("color_hex", colorHex)
	mw.WriteField("squiggle_points", points)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path, username string, body io.Reader, contentType string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if username != "" {
		req.Header.Set("X-Username", username)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("bad JSON from %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp, decoded
}

// seedReadyPost inserts a post and completes it as the pipeline would.
func seedReadyPost(t *testing.T, st *store.Store, id, username string) {
	t.Helper()
	user, err := st.ResolveUser(context.Background(), username)
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if _, err := st.CreatePost(context.Background(), id, user.ID, []byte("\x89PNG-bytes"), validPoints, "#FF8800"); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	bpm := 112
	obj, _ := json.Marshal(&intent.Intent{
		AudioType:        intent.TypeMusic,
		Mood:             intent.Mood{Primary: "warm"},
		Energy:           0.6,
		Tempo:            intent.TempoMedium,
		Density:          intent.DensityMedium,
		Texture:          []string{"organic"},
		SoundReferences:  []string{"tape hiss"},
		DurationSeconds:  15,
		RelationToParent: intent.RelationOriginal,
		Confidence:       0.8,
		BPM:              &bpm,
		MusicalKey:       "D minor",
	})
	err = st.FinishPost(context.Background(), store.GenerationResult{
		ID:               id,
		ImageData:        []byte("\x89PNG-morphed"),
		StructuredObject: string(obj),
		ImageAnalysis:    `{"scene_description":"a pier at dusk","vibe":"wistful"}`,
		Features:         `{"total_length":1.2,"point_count":3}`,
		CompiledPrompt:   "Instrumental music track.",
		AudioFilename:    id + ".mp3",
	}, []byte("\x89PNG-bytes"))
	if err != nil {
		t.Fatalf("FinishPost: %v", err)
	}
}

func TestCreatePost(t *testing.T) {
	// WHAT: valid multipart upload.
	// WHY: must insert the placeholder, launch the pipeline and answer
	// immediately with status=generating.
	e := newTestEnv(t)
	body, ct := multipartUpload(t, []byte("img"), "#FF8800", validPoints)
	resp, data := e.do(t, "POST", "/api/posts", "ada", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, data)
	}
	id, _ := data["id"].(string)
	if len(id) != 12 {
		t.Errorf("id = %q, want 12 hex chars", id)
	}
	if data["status"] != "generating" {
		t.Errorf("status = %v", data["status"])
	}
	if len(e.runner.posts) != 1 {
		t.Fatalf("launched posts = %d, want 1", len(e.runner.posts))
	}
	job := e.runner.posts[0]
	if job.ID != id || job.Username != "ada" || len(job.Points) != 3 {
		t.Errorf("job = %+v", job)
	}

	resp, data = e.do(t, "GET", "/api/posts/"+id+"/status", "", nil, "")
	if resp.StatusCode != http.StatusOK || data["status"] != "generating" {
		t.Errorf("status endpoint: %d %v", resp.StatusCode, data)
	}
}

func TestCreatePostValidation(t *testing.T) {
	e := newTestEnv(t)

	// One point is not a gesture.
	body, ct := multipartUpload(t, []byte("img"), "#FF8800", `[{"x":0.1,"y":0.1,"t":0}]`)
	resp, _ := e.do(t, "POST", "/api/posts", "ada", body, ct)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("too few points: status = %d, want 422", resp.StatusCode)
	}

	// Unparseable points.
	body, ct = multipartUpload(t, []byte("img"), "#FF8800", `not json`)
	resp, _ = e.do(t, "POST", "/api/posts", "ada", body, ct)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad points: status = %d, want 422", resp.StatusCode)
	}

	// Bad color.
	body, ct = multipartUpload(t, []byte("img"), "teal-ish", validPoints)
	resp, _ = e.do(t, "POST", "/api/posts", "ada", body, ct)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad color: status = %d, want 422", resp.StatusCode)
	}

	// Over the 1MB test limit.
	body, ct = multipartUpload(t, make([]byte, 1024*1024+1), "#FF8800", validPoints)
	resp, _ = e.do(t, "POST", "/api/posts", "ada", body, ct)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized image: status = %d, want 413", resp.StatusCode)
	}

	if len(e.runner.posts) != 0 {
		t.Errorf("no pipeline should launch on rejected input, got %d", len(e.runner.posts))
	}
}

func TestUsernameFallback(t *testing.T) {
	// Malformed X-Username headers fall back to the default user instead
	// of failing the request.
	e := newTestEnv(t)
	body, ct := multipartUpload(t, []byte("img"), "#FF8800", validPoints)
	resp, _ := e.do(t, "POST", "/api/posts", "NOT a valid name!", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if e.runner.posts[0].Username != "pascal" {
		t.Errorf("username = %q, want fallback pascal", e.runner.posts[0].Username)
	}
}

func TestFeed(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")
	seedReadyPost(t, e.st, "bbbbbbbbbbbb", "bob")

	resp, data := e.do(t, "GET", "/api/posts?page=1&per_page=1", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if data["total"].(float64) != 2 || data["pages"].(float64) != 2 {
		t.Errorf("total/pages = %v/%v", data["total"], data["pages"])
	}
	posts := data["posts"].([]any)
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	first := posts[0].(map[string]any)
	// Newest first.
	if first["id"] != "bbbbbbbbbbbb" {
		t.Errorf("first post = %v", first["id"])
	}
	if first["audio_url"] != "api/audio/bbbbbbbbbbbb.mp3" {
		t.Errorf("audio_url = %v", first["audio_url"])
	}
	if first["image_url"] != "api/posts/bbbbbbbbbbbb/image" {
		t.Errorf("image_url = %v", first["image_url"])
	}

	resp, _ = e.do(t, "GET", "/api/posts?per_page=500", "", nil, "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("per_page out of range: status = %d, want 422", resp.StatusCode)
	}
}

func TestGetPostDetail(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")

	resp, data := e.do(t, "GET", "/api/posts/aaaaaaaaaaaa", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if data["status"] != "ready" || data["audio_url"] != "api/audio/aaaaaaaaaaaa.mp3" {
		t.Errorf("detail = %v", data)
	}
	obj := data["structured_object"].(map[string]any)
	if obj["audio_type"] != "music" {
		t.Errorf("structured_object = %v", obj)
	}
	if _, ok := data["comments"].([]any); !ok {
		t.Errorf("comments missing or not a list: %v", data["comments"])
	}

	// A generating post exposes only identity and status.
	user, _ := e.st.ResolveUser(context.Background(), "ada")
	e.st.CreatePost(context.Background(), "cccccccccccc", user.ID, []byte("img"), validPoints, "#3366FF")
	resp, data = e.do(t, "GET", "/api/posts/cccccccccccc", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if data["status"] != "generating" || data["structured_object"] != nil || data["audio_url"] != "" {
		t.Errorf("generating detail = %v", data)
	}

	resp, _ = e.do(t, "GET", "/api/posts/nope00000000", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing post: status = %d, want 404", resp.StatusCode)
	}
}

func TestPostImage(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")

	resp, _ := e.do(t, "GET", "/api/posts/aaaaaaaaaaaa/image", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("cache control = %q", cc)
	}

	resp, _ = e.do(t, "GET", "/api/posts/nope00000000/image", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing post: status = %d, want 404", resp.StatusCode)
	}
}

func TestDeletePostOwnership(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")

	resp, _ := e.do(t, "DELETE", "/api/posts/aaaaaaaaaaaa", "mallory", nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete: status = %d, want 403", resp.StatusCode)
	}

	resp, data := e.do(t, "DELETE", "/api/posts/aaaaaaaaaaaa", "ada", nil, "")
	if resp.StatusCode != http.StatusOK || data["status"] != "ok" {
		t.Fatalf("owner delete: %d %v", resp.StatusCode, data)
	}
	if len(e.audio.removed) != 1 || e.audio.removed[0] != "aaaaaaaaaaaa.mp3" {
		t.Errorf("removed audio = %v", e.audio.removed)
	}

	resp, _ = e.do(t, "GET", "/api/posts/aaaaaaaaaaaa", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("post should be gone, status = %d", resp.StatusCode)
	}
}

func TestRecreatePost(t *testing.T) {
	// WHAT: owner recreates a ready post that has a comment.
	// WHY: old audio and all comments must go; the pipeline reruns on the
	// original upload, not the morphed image.
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")
	seedReadyComment(t, e.st, "cmaaaaaaaaaa", "aaaaaaaaaaaa", "bob")

	resp, _ := e.do(t, "POST", "/api/posts/aaaaaaaaaaaa/recreate", "bob", nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign recreate: status = %d, want 403", resp.StatusCode)
	}

	resp, data := e.do(t, "POST", "/api/posts/aaaaaaaaaaaa/recreate", "ada", nil, "")
	if resp.StatusCode != http.StatusOK || data["status"] != "generating" {
		t.Fatalf("recreate: %d %v", resp.StatusCode, data)
	}
	if len(e.runner.recreates) != 1 {
		t.Fatalf("recreate runs = %d, want 1", len(e.runner.recreates))
	}
	if got := string(e.runner.recreates[0].Image); got != "\x89PNG-bytes" {
		t.Errorf("recreate image = %q, want original upload", got)
	}

	// Post audio and comment audio both removed.
	if len(e.audio.removed) != 2 {
		t.Errorf("removed audio = %v", e.audio.removed)
	}
	comments, _ := e.st.CommentsForPost(context.Background(), "aaaaaaaaaaaa")
	if len(comments) != 0 {
		t.Errorf("comments survived recreate: %d", len(comments))
	}
}

func seedReadyComment(t *testing.T, st *store.Store, id, postID, username string) {
	t.Helper()
	user, err := st.ResolveUser(context.Background(), username)
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if _, err := st.CreateComment(context.Background(), id, postID, user.ID, []byte("img"), validPoints, "#3366FF"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	obj, _ := json.Marshal(&intent.Intent{
		AudioType:        intent.TypeMusic,
		Mood:             intent.Mood{Primary: "bright"},
		Energy:           0.5,
		Tempo:            intent.TempoMedium,
		Density:          intent.DensitySparse,
		Texture:          []string{"airy"},
		SoundReferences:  []string{"bells"},
		DurationSeconds:  15,
		RelationToParent: intent.RelationMirror,
		Confidence:       0.7,
	})
	err = st.FinishComment(context.Background(), store.GenerationResult{
		ID:               id,
		StructuredObject: string(obj),
		ImageAnalysis:    `{"scene_description":"close-up of rain","vibe":"calm"}`,
		Features:         `{"total_length":0.4,"point_count":3}`,
		CompiledPrompt:   "Instrumental music track.",
		AudioFilename:    id + ".mp3",
	})
	if err != nil {
		t.Fatalf("FinishComment: %v", err)
	}
}

func TestCreateComment(t *testing.T) {
	e := newTestEnv(t)

	// Parent must exist.
	body, ct := multipartUpload(t, []byte("img"), "#3366FF", validPoints)
	resp, _ := e.do(t, "POST", "/api/posts/nope00000000/comments", "bob", body, ct)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing parent: status = %d, want 404", resp.StatusCode)
	}

	// Parent must be ready.
	user, _ := e.st.ResolveUser(context.Background(), "ada")
	e.st.CreatePost(context.Background(), "gggggggggggg", user.ID, []byte("img"), validPoints, "#FF8800")
	body, ct = multipartUpload(t, []byte("img"), "#3366FF", validPoints)
	resp, _ = e.do(t, "POST", "/api/posts/gggggggggggg/comments", "bob", body, ct)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("generating parent: status = %d, want 409", resp.StatusCode)
	}

	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")
	body, ct = multipartUpload(t, []byte("img"), "#3366FF", validPoints)
	resp, data := e.do(t, "POST", "/api/posts/aaaaaaaaaaaa/comments", "bob", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create comment: %d %v", resp.StatusCode, data)
	}
	if data["post_id"] != "aaaaaaaaaaaa" || data["status"] != "generating" {
		t.Errorf("response = %v", data)
	}

	if len(e.runner.comments) != 1 {
		t.Fatalf("comment runs = %d, want 1", len(e.runner.comments))
	}
	parent := e.runner.parents[0]
	if parent == nil || parent.DurationSeconds != 15 || parent.MusicalKey != "D minor" {
		t.Errorf("parent intent = %+v", parent)
	}
}

func TestListComments(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")
	seedReadyComment(t, e.st, "cmaaaaaaaaaa", "aaaaaaaaaaaa", "bob")

	resp, data := e.do(t, "GET", "/api/posts/aaaaaaaaaaaa/comments", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	comments := data["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(comments))
	}
	c := comments[0].(map[string]any)
	if c["username"] != "bob" || c["audio_url"] != "api/audio/cmaaaaaaaaaa.mp3" {
		t.Errorf("comment = %v", c)
	}

	resp, _ = e.do(t, "GET", "/api/posts/nope00000000/comments", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing post: status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteComment(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")
	seedReadyComment(t, e.st, "cmaaaaaaaaaa", "aaaaaaaaaaaa", "bob")

	resp, _ := e.do(t, "DELETE", "/api/posts/aaaaaaaaaaaa/comments/cmaaaaaaaaaa", "ada", nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete: status = %d, want 403", resp.StatusCode)
	}

	resp, _ = e.do(t, "DELETE", "/api/posts/aaaaaaaaaaaa/comments/cmaaaaaaaaaa", "bob", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner delete: status = %d", resp.StatusCode)
	}
	if len(e.audio.removed) != 1 || e.audio.removed[0] != "cmaaaaaaaaaa.mp3" {
		t.Errorf("removed audio = %v", e.audio.removed)
	}

	resp, _ = e.do(t, "GET", "/api/comments/cmaaaaaaaaaa/status", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("comment should be gone, status = %d", resp.StatusCode)
	}
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")

	resp, data := e.do(t, "GET", "/api/users/ada", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	user := data["user"].(map[string]any)
	if user["username"] != "ada" {
		t.Errorf("user = %v", user)
	}
	if len(data["posts"].([]any)) != 1 {
		t.Errorf("posts = %v", data["posts"])
	}

	// Profiles never auto-create users.
	resp, _ = e.do(t, "GET", "/api/users/stranger", "", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", resp.StatusCode)
	}
}

func TestReset(t *testing.T) {
	e := newTestEnv(t)
	seedReadyPost(t, e.st, "aaaaaaaaaaaa", "ada")

	resp, data := e.do(t, "POST", "/api/reset", "ada", nil, "")
	if resp.StatusCode != http.StatusOK || data["status"] != "ok" {
		t.Fatalf("reset: %d %v", resp.StatusCode, data)
	}

	_, total, err := e.st.Feed(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if total != 0 {
		t.Errorf("posts after reset = %d, want 0", total)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, data := e.do(t, "GET", "/health", "", nil, "")
	if resp.StatusCode != http.StatusOK || data["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, data)
	}
}
