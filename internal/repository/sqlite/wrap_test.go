package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
)

func TestCreateWrap(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "spotify-1")

	data := json.RawMessage(`{"personality":"Rock Rebel","topGenres":["rock"]}`)
	w, err := db.CreateWrap(context.Background(), model.NewWrap{UserID: u.ID, Data: data})
	if err != nil {
		t.Fatalf("CreateWrap() error = %v", err)
	}

	if w.ID == 0 {
		t.Error("CreateWrap() did not assign an ID")
	}
	if w.CreatedAt.IsZero() {
		t.Error("CreateWrap() did not set CreatedAt")
	}
	if w.ShareURL != nil {
		t.Errorf("ShareURL = %v, want nil", *w.ShareURL)
	}
	if string(w.Data) != string(data) {
		t.Errorf("Data = %s, want %s", w.Data, data)
	}
}

func TestCreateWrap_InvalidData(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "spotify-1")

	_, err := db.CreateWrap(context.Background(), model.NewWrap{UserID: u.ID, Data: json.RawMessage(`{`)})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGetWrapsByUserID_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	advance := fixedClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	u := createTestUser(t, db, "spotify-1")

	var ids []int64
	for _, p := range []string{"Pop Connoisseur", "Rock Rebel", "Indie Explorer"} {
		data, _ := json.Marshal(model.WrapData{Personality: p})
		w, err := db.CreateWrap(context.Background(), model.NewWrap{UserID: u.ID, Data: data})
		if err != nil {
			t.Fatalf("CreateWrap() error = %v", err)
		}
		ids = append(ids, w.ID)
		advance(time.Minute)
	}

	wraps, err := db.GetWrapsByUserID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetWrapsByUserID() error = %v", err)
	}
	if len(wraps) != 3 {
		t.Fatalf("got %d wraps, want 3", len(wraps))
	}
	for i, want := range []int64{ids[2], ids[1], ids[0]} {
		if wraps[i].ID != want {
			t.Errorf("wraps[%d].ID = %d, want %d", i, wraps[i].ID, want)
		}
	}
	if !wraps[0].CreatedAt.After(wraps[2].CreatedAt) {
		t.Errorf("newest wrap %v not after oldest %v", wraps[0].CreatedAt, wraps[2].CreatedAt)
	}
}

func TestGetWrapsByUserID_SameTimestampOrdersByID(t *testing.T) {
	db := newTestDB(t)
	fixedClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	u := createTestUser(t, db, "spotify-1")

	first, _ := db.CreateWrap(context.Background(), model.NewWrap{UserID: u.ID, Data: json.RawMessage(`{}`)})
	second, _ := db.CreateWrap(context.Background(), model.NewWrap{UserID: u.ID, Data: json.RawMessage(`{}`)})

	wraps, err := db.GetWrapsByUserID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetWrapsByUserID() error = %v", err)
	}
	if len(wraps) != 2 || wraps[0].ID != second.ID || wraps[1].ID != first.ID {
		t.Errorf("unexpected order: %+v", wraps)
	}
}

func TestGetWrapsByUserID_OnlyOwnWraps(t *testing.T) {
	db := newTestDB(t)
	a := createTestUser(t, db, "a")
	b := createTestUser(t, db, "b")

	if _, err := db.CreateWrap(context.Background(), model.NewWrap{UserID: a.ID, Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("CreateWrap() error = %v", err)
	}

	wraps, err := db.GetWrapsByUserID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetWrapsByUserID() error = %v", err)
	}
	if wraps == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(wraps) != 0 {
		t.Errorf("got %d wraps for user without wraps", len(wraps))
	}
}

func TestCreateWrap_ShareURLRoundTrips(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "spotify-1")

	url := "https://wrapify.example/w/abc"
	if _, err := db.CreateWrap(context.Background(), model.NewWrap{
		UserID: u.ID, Data: json.RawMessage(`{}`), ShareURL: &url,
	}); err != nil {
		t.Fatalf("CreateWrap() error = %v", err)
	}

	wraps, _ := db.GetWrapsByUserID(context.Background(), u.ID)
	if len(wraps) != 1 || wraps[0].ShareURL == nil || *wraps[0].ShareURL != url {
		t.Errorf("ShareURL did not round-trip: %+v", wraps)
	}
}
