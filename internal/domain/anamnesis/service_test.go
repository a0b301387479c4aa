package anamnesis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

// memStore is an in-memory Store with the same compare-and-swap semantics
// as the Postgres implementation.
type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	history map[string][]Version
	saveErr error
	nextSeq int64
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*Record),
		history: make(map[string][]Version),
	}
}

func (m *memStore) write(patientID string, sections map[string]json.RawMessage, editorUID string) *Record {
	var prevSnapshot json.RawMessage
	if current, ok := m.records[patientID]; ok {
		prevSnapshot, _ = json.Marshal(current)
	}
	rec := &Record{
		PatientID:    patientID,
		Sections:     sections,
		VersionID:    uuid.NewString(),
		UpdatedAt:    time.Now().UTC(),
		LastEditedBy: editorUID,
	}
	m.nextSeq++
	m.history[patientID] = append([]Version{{
		Seq:              m.nextSeq,
		VersionID:        rec.VersionID,
		Sections:         rec.Sections,
		EditedBy:         rec.LastEditedBy,
		CreatedAt:        rec.UpdatedAt,
		PreviousSnapshot: prevSnapshot,
	}}, m.history[patientID]...)
	m.records[patientID] = rec
	return rec
}

func (m *memStore) SaveOrUpdate(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return m.write(patientID, sections, editorUID), nil
}

func (m *memStore) SaveWithExpectedVersion(ctx context.Context, patientID string, sections map[string]json.RawMessage, editorUID, expectedVersion string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	current := m.records[patientID]
	if current != nil && current.VersionID != expectedVersion {
		return nil, &ConflictError{
			ExpectedVersion: expectedVersion,
			CurrentVersion:  current.VersionID,
			Current:         current,
		}
	}
	return m.write(patientID, sections, editorUID), nil
}

func (m *memStore) GetCurrent(ctx context.Context, patientID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[patientID], nil
}

func (m *memStore) GetHistory(ctx context.Context, patientID string, page pagination.Params) ([]Version, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.history[patientID]
	total := len(all)
	if page.Offset >= total {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return all[page.Offset:end], total, nil
}

var (
	patientSelf  = &auth.Identity{UID: "p1", Role: auth.RolePatient, EmailVerified: true}
	otherPatient = &auth.Identity{UID: "p2", Role: auth.RolePatient, EmailVerified: true}
	doctor       = &auth.Identity{UID: "d1", Role: auth.RoleDoctor, EmailVerified: true}
	unverified   = &auth.Identity{UID: "p1", Role: auth.RolePatient, EmailVerified: false}
)

func validSections() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"allergies": json.RawMessage(`{"items":["penicillin"]}`),
	}
}

func newTestService(store Store) *Service {
	return NewService(store, zerolog.Nop())
}

func TestSave_GateOrder(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.Save(ctx, nil, "p1", validSections())
	if KindOf(err) != KindUnauthenticated {
		t.Errorf("anonymous caller: expected unauthenticated, got %v", err)
	}

	_, err = svc.Save(ctx, unverified, "p1", validSections())
	if KindOf(err) != KindEmailNotVerified {
		t.Errorf("unverified caller: expected email-not-verified, got %v", err)
	}

	_, err = svc.Save(ctx, otherPatient, "p1", validSections())
	if KindOf(err) != KindForbidden {
		t.Errorf("other patient: expected forbidden, got %v", err)
	}
}

func TestSave_UnverifiedBeforeForbidden(t *testing.T) {
	svc := newTestService(newMemStore())

	// A caller failing both checks sees the verification failure first.
	caller := &auth.Identity{UID: "p2", Role: auth.RolePatient, EmailVerified: false}
	_, err := svc.Save(context.Background(), caller, "p1", validSections())
	if KindOf(err) != KindEmailNotVerified {
		t.Errorf("expected email-not-verified to win, got %v", err)
	}
}

func TestSave_OwnAndDoctorAccess(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	if _, err := svc.Save(ctx, patientSelf, "p1", validSections()); err != nil {
		t.Errorf("patient writing own record: %v", err)
	}
	if _, err := svc.Save(ctx, doctor, "p1", validSections()); err != nil {
		t.Errorf("doctor writing any record: %v", err)
	}
}

func TestSave_Invalid(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Save(context.Background(), patientSelf, "p1", nil)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rec, _ := store.GetCurrent(context.Background(), "p1"); rec != nil {
		t.Error("invalid save must not touch the store")
	}
}

func TestSave_FreshVersionPerWrite(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	first, err := svc.Save(ctx, patientSelf, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Save(ctx, patientSelf, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}
	if first.VersionID == second.VersionID {
		t.Error("each write must mint a fresh version token")
	}
	if second.LastEditedBy != "p1" {
		t.Errorf("expected editor p1, got %q", second.LastEditedBy)
	}
}

func TestSync_Conflict(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	base, err := svc.Save(ctx, patientSelf, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}
	winner, err := svc.Sync(ctx, doctor, "p1", validSections(), base.VersionID)
	if err != nil {
		t.Fatal(err)
	}

	// A second writer still holding the old version loses.
	_, err = svc.Sync(ctx, patientSelf, "p1", validSections(), base.VersionID)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if ce.CurrentVersion != winner.VersionID {
		t.Errorf("conflict should carry the winning version %s, got %s", winner.VersionID, ce.CurrentVersion)
	}
	if ce.Current == nil || ce.Current.LastEditedBy != "d1" {
		t.Errorf("conflict should carry the winning record, got %+v", ce.Current)
	}
}

func TestSync_MissingExpectedVersion(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Sync(context.Background(), patientSelf, "p1", validSections(), "")
	if KindOf(err) != KindValidation {
		t.Errorf("expected validation error for empty expected version, got %v", err)
	}
}

func TestSync_FirstWriterWins(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	base, err := svc.Save(ctx, doctor, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}

	const writers = 16
	var wg sync.WaitGroup
	var successes, conflicts int64
	var mu sync.Mutex

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sync(ctx, doctor, "p1", validSections(), base.VersionID)
			mu.Lock()
			defer mu.Unlock()
			var ce *ConflictError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &ce):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("exactly one concurrent writer must win, got %d", successes)
	}
	if conflicts != writers-1 {
		t.Errorf("expected %d conflicts, got %d", writers-1, conflicts)
	}
}

func TestSync_MissingRecordCreates(t *testing.T) {
	svc := newTestService(newMemStore())

	rec, err := svc.Sync(context.Background(), patientSelf, "p1", validSections(), "stale-token")
	if err != nil {
		t.Fatalf("sync on absent record should create, got %v", err)
	}
	if rec.VersionID == "" || rec.VersionID == "stale-token" {
		t.Errorf("created record should mint a fresh version, got %q", rec.VersionID)
	}
}

func TestSaveOrUpdate_ParallelWrites(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	if _, err := svc.Save(ctx, doctor, "p1", validSections()); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	versions := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Save(ctx, doctor, "p1", validSections())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			versions <- rec.VersionID
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[string]bool)
	for v := range versions {
		if seen[v] {
			t.Errorf("duplicate version token %s", v)
		}
		seen[v] = true
	}

	_, total, err := svc.History(ctx, doctor, "p1", pagination.Params{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if total != writers+1 {
		t.Errorf("each write must leave a history entry: expected %d, got %d", writers+1, total)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Get(context.Background(), doctor, "missing")
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestHistory_FirstSaveLeavesOneEntry(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	rec, err := svc.Save(ctx, patientSelf, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}

	versions, total, err := svc.History(ctx, patientSelf, "p1", pagination.Params{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("one save must leave exactly one history entry, got %d", total)
	}
	if versions[0].VersionID != rec.VersionID {
		t.Errorf("history entry should carry the written version %s, got %s", rec.VersionID, versions[0].VersionID)
	}
	if len(versions[0].PreviousSnapshot) != 0 {
		t.Errorf("first write has nothing to snapshot, got %s", versions[0].PreviousSnapshot)
	}
}

func TestHistory_EntryPerWrite(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	v1, err := svc.Save(ctx, patientSelf, "p1", map[string]json.RawMessage{
		"allergies": json.RawMessage(`{"items":[]}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := svc.Save(ctx, doctor, "p1", map[string]json.RawMessage{
		"allergies": json.RawMessage(`{"items":["penicillin"]}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	v3, err := svc.Save(ctx, doctor, "p1", validSections())
	if err != nil {
		t.Fatal(err)
	}

	versions, total, err := svc.History(ctx, doctor, "p1", pagination.Params{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("three writes should leave three history entries, got %d", total)
	}
	if versions[0].VersionID != v3.VersionID {
		t.Errorf("newest entry should mirror the current record %s, got %s", v3.VersionID, versions[0].VersionID)
	}
	if versions[2].VersionID != v1.VersionID {
		t.Errorf("oldest entry should be the first write %s, got %s", v1.VersionID, versions[2].VersionID)
	}

	// The newest snapshot is the record the write replaced.
	var prev Record
	if err := json.Unmarshal(versions[0].PreviousSnapshot, &prev); err != nil {
		t.Fatalf("decoding previous snapshot: %v", err)
	}
	if prev.VersionID != v2.VersionID {
		t.Errorf("snapshot should hold the replaced version %s, got %s", v2.VersionID, prev.VersionID)
	}
	if len(versions[2].PreviousSnapshot) != 0 {
		t.Errorf("oldest entry should have no snapshot, got %s", versions[2].PreviousSnapshot)
	}
}

func TestSave_TransientSurfaces(t *testing.T) {
	store := newMemStore()
	store.saveErr = ErrTransient(errors.New("serialization failure"))
	svc := newTestService(store)

	_, err := svc.Save(context.Background(), doctor, "p1", validSections())
	if KindOf(err) != KindTransient {
		t.Errorf("expected transient error to surface, got %v", err)
	}
}
