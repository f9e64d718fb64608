package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NickJuneau/mealmate-v2-web/internal/message"
	"github.com/NickJuneau/mealmate-v2-web/internal/scan"

	"github.com/pkg/errors"
)

type stubScanner struct {
	gotOpts scan.Options
	res     *message.ScanResult
	err     error
}

func (s *stubScanner) Scan(_ context.Context, opts scan.Options) (*message.ScanResult, error) {
	s.gotOpts = opts
	return s.res, s.err
}

func scanResult(used, usedRecent int, events int) *message.ScanResult {
	res := &message.ScanResult{
		WeekStart:        time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC),
		Used:             used,
		UsedRecent:       usedRecent,
		TotalFoundRecent: events,
	}
	for i := 0; i < events; i++ {
		res.Events = append(res.Events, message.SwipeEvent{
			MessageID: "m" + string(rune('0'+i)),
			Meals:     1,
			InWeek:    true,
		})
	}
	return res
}

func get(t *testing.T, sc Scanner, url string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	r := NewRouter(sc, 7)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad JSON response: %v", err)
		}
	}
	return w, body
}

func TestSwipesResponse(t *testing.T) {
	sc := &stubScanner{res: scanResult(3, 5, 2)}
	w, body := get(t, sc, "/api/swipes")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if sc.gotOpts.Days != 7 || sc.gotOpts.MaxResults != swipesMaxResults || sc.gotOpts.IgnoreWeek {
		t.Errorf("opts = %+v, want defaults", sc.gotOpts)
	}
	if body["used"].(float64) != 3 {
		t.Errorf("used = %v, want 3", body["used"])
	}
	if body["remaining"].(float64) != 4 {
		t.Errorf("remaining = %v, want 4", body["remaining"])
	}
	meta := body["meta"].(map[string]interface{})
	if meta["usedRecent"].(float64) != 5 || meta["totalFoundRecent"].(float64) != 2 {
		t.Errorf("meta = %v", meta)
	}
}

func TestSwipesRemainingNeverNegative(t *testing.T) {
	sc := &stubScanner{res: scanResult(9, 9, 0)}
	_, body := get(t, sc, "/api/swipes")
	if body["remaining"].(float64) != 0 {
		t.Errorf("remaining = %v, want 0", body["remaining"])
	}
}

func TestSwipesPreviewCapped(t *testing.T) {
	sc := &stubScanner{res: scanResult(20, 20, 20)}
	_, body := get(t, sc, "/api/swipes")
	preview := body["preview"].([]interface{})
	if len(preview) != previewLimit {
		t.Errorf("preview has %d entries, want %d", len(preview), previewLimit)
	}
}

func TestSwipesQueryParams(t *testing.T) {
	sc := &stubScanner{res: scanResult(0, 0, 0)}
	if w, _ := get(t, sc, "/api/swipes?days=14&ignoreWeek=1&debug=true"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if sc.gotOpts.Days != 14 || !sc.gotOpts.IgnoreWeek || !sc.gotOpts.Debug {
		t.Errorf("opts = %+v", sc.gotOpts)
	}
}

func TestSwipesBadDays(t *testing.T) {
	sc := &stubScanner{res: scanResult(0, 0, 0)}
	if w, _ := get(t, sc, "/api/swipes?days=soon"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHistoryForcesIgnoreWeek(t *testing.T) {
	sc := &stubScanner{res: scanResult(2, 6, 3)}
	w, body := get(t, sc, "/api/history")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !sc.gotOpts.IgnoreWeek {
		t.Error("history scan must ignore the weekly window")
	}
	if sc.gotOpts.Days != historyDays || sc.gotOpts.MaxResults != historyMaxResults {
		t.Errorf("opts = %+v", sc.gotOpts)
	}
	if body["usedRecent"].(float64) != 6 {
		t.Errorf("usedRecent = %v", body["usedRecent"])
	}
	if len(body["events"].([]interface{})) != 3 {
		t.Errorf("events = %v", body["events"])
	}
}

func TestScanErrorIsServerError(t *testing.T) {
	sc := &stubScanner{err: errors.New("mailbox unreachable")}
	w, body := get(t, sc, "/api/swipes")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestHealth(t *testing.T) {
	sc := &stubScanner{res: scanResult(0, 0, 0)}
	if w, _ := get(t, sc, "/health"); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
