package adherence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fdg312/coach-nutrition/internal/storage"
	"github.com/fdg312/coach-nutrition/internal/userctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMux(t *testing.T, deps Deps) *http.ServeMux {
	t.Helper()

	svc := NewService(deps)
	t.Cleanup(func() { svc.Close(context.Background()) })
	mux := http.NewServeMux()
	NewHandler(svc, zaptest.NewLogger(t)).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(userctx.WithClientID(req.Context(), testClient))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleGetDay(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	rr := doRequest(t, mux, http.MethodGet, "/v1/nutrition/day?day_index=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var view DayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Len(t, view.Slots, 2)
	assert.Equal(t, "300g", view.Slots[0].Portion)
	assert.Equal(t, 1050, view.Progress.Total.Kcal)
}

func TestHandleGetDay_InvalidIndex(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	for _, target := range []string{
		"/v1/nutrition/day",
		"/v1/nutrition/day?day_index=abc",
		"/v1/nutrition/day?day_index=28",
	} {
		rr := doRequest(t, mux, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "invalid_request", decodeError(t, rr).Code, target)
	}
}

func TestHandleToggle(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	rr := doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", map[string]int{"day_index": 0, "slot_index": 0})
	require.Equal(t, http.StatusOK, rr.Code)

	var view DayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.True(t, view.Slots[0].Checked)
	assert.Equal(t, 750, view.Progress.Checked.Kcal)

	rr = doRequest(t, mux, http.MethodGet, "/v1/nutrition/today", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var today TodayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &today))
	assert.Equal(t, 750, today.Progress.Checked.Kcal)
	assert.Equal(t, 2000, today.Targets.Kcal)
}

func TestHandleToggle_Validation(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	rr := doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_payload", decodeError(t, rr).Code)

	rr = doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", map[string]int{"day_index": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rr).Code)

	rr = doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", map[string]int{"day_index": 0, "slot_index": 5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSwapFlow(t *testing.T) {
	f := newFixture(t)
	mux := newTestMux(t, f.deps)

	rr := doRequest(t, mux, http.MethodPost, "/v1/nutrition/swaps", map[string]interface{}{
		"day_index": 0, "slot_index": 1, "meal_id": "meal-c",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, mux, http.MethodPost, "/v1/nutrition/swaps", map[string]interface{}{
		"day_index": 0, "slot_index": 1, "meal_id": "nope",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "meal_not_found", decodeError(t, rr).Code)

	rr = doRequest(t, mux, http.MethodPost, "/v1/nutrition/swaps/commit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var commit CommitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &commit))
	assert.Equal(t, 1, commit.Applied)

	rr = doRequest(t, mux, http.MethodDelete, "/v1/nutrition/swaps?day_index=0&slot_index=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view DayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "meal-c", view.Slots[1].MealID)
	assert.False(t, view.Slots[1].Swapped)

	rr = doRequest(t, mux, http.MethodDelete, "/v1/nutrition/swaps?day_index=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSave(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", map[string]int{"day_index": 0, "slot_index": 0})
	rr := doRequest(t, mux, http.MethodPost, "/v1/nutrition/progress/save", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SaveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "2026-03-02", resp.Snapshot.Date)
	require.Len(t, resp.Snapshot.MealsChecked, 1)
	require.NotNil(t, resp.Snapshot.MealsChecked[0].SlotIndex)
	assert.Equal(t, 0, *resp.Snapshot.MealsChecked[0].SlotIndex)
}

func TestHandleSave_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Snapshots = &failingSnapshots{SnapshotsStorage: f.store.GetSnapshotsStorage(), err: errors.New("connection refused")}
	mux := newTestMux(t, f.deps)

	doRequest(t, mux, http.MethodPost, "/v1/nutrition/checks/toggle", map[string]int{"day_index": 0, "slot_index": 0})
	rr := doRequest(t, mux, http.MethodPost, "/v1/nutrition/progress/save", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "persist_failed", decodeError(t, rr).Code)

	// Local state survives the failure.
	rr = doRequest(t, mux, http.MethodGet, "/v1/nutrition/day?day_index=0", nil)
	var view DayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.True(t, view.Slots[0].Checked)
}

func TestHandleCommit_NoPlan(t *testing.T) {
	f := newFixture(t)
	mux := newTestMux(t, f.deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/nutrition/swaps/commit", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "plan_not_found", decodeError(t, rr).Code)
}

func TestHandlers_AnonymousClient(t *testing.T) {
	f := newFixture(t)
	f.store.PutPlan(storage.Plan{ClientID: AnonymousClientID, StartDate: planStart, WeekStructure: exampleWeek()})
	mux := newTestMux(t, f.deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/nutrition/today", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var today TodayView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &today))
	assert.True(t, today.HasPlan)
	assert.True(t, today.InPlan)
}

func TestHandleSearchMeals(t *testing.T) {
	mux := newTestMux(t, newFixture(t).deps)

	rr := doRequest(t, mux, http.MethodGet, "/v1/nutrition/meals?category=lunch", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp MealSearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Meals, 2)
	assert.Equal(t, "Omelet", resp.Meals[0].Name)
	assert.Equal(t, "Salade", resp.Meals[1].Name)

	rr = doRequest(t, mux, http.MethodGet, "/v1/nutrition/meals?query=haver&limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Meals, 1)
	assert.Equal(t, "meal-a", resp.Meals[0].ID)

	rr = doRequest(t, mux, http.MethodGet, "/v1/nutrition/meals?query=zzz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"meals":[]}`, rr.Body.String())

	rr = doRequest(t, mux, http.MethodGet, "/v1/nutrition/meals?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
