package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmethakanbesel/ranking-api/internal/job"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
	"github.com/ahmethakanbesel/ranking-api/internal/server"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/metadata"
	"github.com/ahmethakanbesel/ranking-api/internal/stage/simulated"
)

func simulatedStages() pipeline.Stages {
	sim := simulated.New(simulated.WithCompileDelay(0), simulated.WithPublishDelay(0))
	return pipeline.Stages{
		Discoverer: sim,
		Preparer:   sim,
		Compiler:   sim,
		Metadata:   metadata.Template{},
		Publisher:  sim,
	}
}

func setupE2E(t *testing.T, stages pipeline.Stages) *httptest.Server {
	t.Helper()

	store := job.NewMemoryStore()
	exec := job.NewExecutor(store, stages, job.WithRanker(pipeline.Ranker{}), job.WithStageTimeout(5*time.Second))
	dispatcher := job.NewDispatcher(exec, 2)
	svc := job.NewService(store, dispatcher)

	ts := httptest.NewServer(server.NewHandler(svc))
	// Cleanup runs LIFO: close server, then drain the dispatcher.
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })
	t.Cleanup(ts.Close)
	return ts
}

type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func submit(t *testing.T, baseURL string, body any) string {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/v1/jobs", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	out := decode[envelope[server.SubmitResponse]](t, resp)
	if out.Data.JobID == "" {
		t.Fatal("expected job id")
	}
	return out.Data.JobID
}

func getJob(t *testing.T, baseURL, id string) (int, job.Snapshot) {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/v1/jobs/" + id) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	status := resp.StatusCode
	return status, decode[envelope[job.Snapshot]](t, resp).Data
}

// waitForJob polls until the job reaches a terminal status and checks that
// the observed statuses never move backwards.
func waitForJob(t *testing.T, baseURL, id string) job.Snapshot {
	t.Helper()

	deadline := time.After(5 * time.Second)
	var seen []job.Status
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s, statuses %v", id, seen)
		default:
		}

		_, snap := getJob(t, baseURL, id)
		seen = append(seen, snap.Status)
		if snap.Status == job.StatusCompleted && snap.ResultURL == "" {
			t.Fatal("completed job without result url")
		}
		if snap.Status != job.StatusCompleted && snap.ResultURL != "" {
			t.Fatalf("%s job has result url %s", snap.Status, snap.ResultURL)
		}
		if snap.Status == job.StatusCompleted || snap.Status == job.StatusError {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_Health(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	resp, err := http.Get(ts.URL + "/health") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestE2E_GenerateWithoutPublishing(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	id := submit(t, ts.URL, map[string]any{"niche": "cats", "itemCount": 3})
	snap := waitForJob(t, ts.URL, id)

	if snap.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.Status, snap.Message)
	}
	if !strings.HasPrefix(snap.ResultURL, "/download/ranking_top3_") || !strings.HasSuffix(snap.ResultURL, ".mp4") {
		t.Errorf("unexpected result url %s", snap.ResultURL)
	}
	if snap.Message != job.MsgGenerated {
		t.Errorf("unexpected message %q", snap.Message)
	}
	if snap.Metadata == nil || snap.Metadata.Title != "Top 3 cats You Need to See!" {
		t.Errorf("unexpected metadata %+v", snap.Metadata)
	}
}

func TestE2E_GenerateAndPublish(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	id := submit(t, ts.URL, map[string]any{"niche": "dogs", "itemCount": 2, "autoPublish": true, "title": "Best Dogs"})
	snap := waitForJob(t, ts.URL, id)

	if snap.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.Status, snap.Message)
	}
	if !strings.HasPrefix(snap.ResultURL, "https://www.youtube.com/watch?v=yt_") {
		t.Errorf("unexpected result url %s", snap.ResultURL)
	}
	if snap.Metadata.Title != "Best Dogs" {
		t.Errorf("expected caller title, got %q", snap.Metadata.Title)
	}
}

func TestE2E_MissingNiche(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	resp := postJSON(t, ts.URL+"/api/v1/jobs", map[string]any{"itemCount": 3})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	out := decode[envelope[*struct{}]](t, resp)
	if out.Message != "niche is required" {
		t.Errorf("unexpected message %q", out.Message)
	}

	list, err := http.Get(ts.URL + "/api/v1/jobs") //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	if jobs := decode[envelope[[]job.Snapshot]](t, list).Data; len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
}

func TestE2E_InvalidBody(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", strings.NewReader("{nope")) //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestE2E_DiscoveryFailure(t *testing.T) {
	stages := simulatedStages()
	stages.Discoverer = pipeline.DiscoverFunc(func(context.Context, string, int) ([]pipeline.Candidate, error) {
		return nil, errors.New("quota exceeded")
	})
	ts := setupE2E(t, stages)

	id := submit(t, ts.URL, map[string]any{"niche": "cats"})
	snap := waitForJob(t, ts.URL, id)

	if snap.Status != job.StatusError {
		t.Fatalf("expected error, got %s", snap.Status)
	}
	if !strings.Contains(snap.Message, "discovery") {
		t.Errorf("expected message to mention discovery, got %q", snap.Message)
	}
	if snap.ResultURL != "" {
		t.Errorf("expected no result url, got %s", snap.ResultURL)
	}
}

func TestE2E_UnknownJob(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	status, _ := getJob(t, ts.URL, "does-not-exist")
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestE2E_Cancel(t *testing.T) {
	stages := simulatedStages()
	entered := make(chan struct{})
	stages.Compiler = pipeline.CompileFunc(func(ctx context.Context, _ []pipeline.Clip, _ int) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	})
	ts := setupE2E(t, stages)

	id := submit(t, ts.URL, map[string]any{"niche": "cats", "itemCount": 1})
	<-entered

	resp := postJSON(t, ts.URL+"/api/v1/jobs/"+id+"/cancel", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	snap := waitForJob(t, ts.URL, id)
	if snap.Status != job.StatusError || !strings.Contains(snap.Message, "cancelled") {
		t.Errorf("unexpected final state %s %q", snap.Status, snap.Message)
	}

	resp = postJSON(t, ts.URL+"/api/v1/jobs/"+id+"/cancel", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for finished job, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/jobs/missing/cancel", nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestE2E_ListFilters(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	a := submit(t, ts.URL, map[string]any{"niche": "cats", "itemCount": 1})
	submit(t, ts.URL, map[string]any{"niche": "dogs", "itemCount": 1})
	waitForJob(t, ts.URL, a)

	resp, err := http.Get(ts.URL + "/api/v1/jobs?niche=cats") //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	jobs := decode[envelope[[]job.Snapshot]](t, resp).Data
	if len(jobs) != 1 || jobs[0].ID != a {
		t.Errorf("unexpected jobs %+v", jobs)
	}

	resp, err = http.Get(ts.URL + "/api/v1/jobs?status=bogus") //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestE2E_LegacyRoutes(t *testing.T) {
	ts := setupE2E(t, simulatedStages())

	resp := postJSON(t, ts.URL+"/api/generate-ranking", map[string]any{"niche": "cats", "videoCount": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	started := decode[map[string]string](t, resp)
	id := started["jobId"]
	if id == "" || started["message"] != "Video generation started" {
		t.Fatalf("unexpected body %v", started)
	}

	snap := waitForJob(t, ts.URL, id)
	if snap.Request.ItemCount != 2 {
		t.Errorf("videoCount alias ignored, got %d", snap.Request.ItemCount)
	}

	r, err := http.Get(ts.URL + "/api/job-status?jobId=" + id) //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	status := decode[map[string]string](t, r)
	if status["status"] != "completed" || !strings.HasPrefix(status["videoUrl"], "/download/") {
		t.Errorf("unexpected status body %v", status)
	}

	r, err = http.Get(ts.URL + "/api/job-status") //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", r.StatusCode)
	}
	if body := decode[map[string]string](t, r); body["error"] != "Job ID is required" {
		t.Errorf("unexpected error body %v", body)
	}

	r, err = http.Get(ts.URL + "/api/job-status?jobId=nope") //nolint:gosec // test URL
	if err != nil {
		t.Fatal(err)
	}
	_ = r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", r.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/generate-ranking", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["error"] == "" {
		t.Error("expected error field")
	}
}
