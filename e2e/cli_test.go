package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
	"github.com/mcoot/arcade-judge/internal/storage"
	redisstorage "github.com/mcoot/arcade-judge/internal/storage/redis"
)

var (
	buildOnce  sync.Once
	binaryPath string
	buildErr   error
)

// judgeBinary builds cmd/judge once per test binary
func judgeBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		root := findProjectRoot(t)
		binaryPath = filepath.Join(root, "bin", "judge-test")
		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/judge")
		cmd.Dir = root
		if output, err := cmd.CombinedOutput(); err != nil {
			buildErr = fmt.Errorf("failed to build judge: %w: %s", err, output)
		}
	})
	require.NoError(t, buildErr)
	return binaryPath
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testStore is a miniredis instance with a storage handle for seeding and inspection
type testStore struct {
	mini  *miniredis.Miniredis
	store *redisstorage.Storage
	creds string
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &testStore{
		mini:  mini,
		store: redisstorage.NewWithClient(client, redisstorage.DefaultConfig()),
		creds: fmt.Sprintf(`{"backend":"redis","url":"redis://%s"}`, mini.Addr()),
	}
}

func (s *testStore) seedUser(t *testing.T, u *model.User, ledger ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.store.SaveUser(ctx, u))
	if len(ledger) == 0 {
		return
	}
	batch := storage.NewBatch()
	for i, amount := range ledger {
		batch.AppendLedger(u.ID, model.LedgerEntry{
			ID:        model.LedgerEntryID(fmt.Sprintf("%s-%d", u.ID, i)),
			Amount:    amount,
			Reason:    "purchase",
			Timestamp: time.Date(2026, 10, 15, 0, 0, i, 0, time.UTC),
		})
	}
	require.NoError(t, s.store.Commit(ctx, batch))
}

func (s *testStore) user(t *testing.T, id model.UserID) *model.User {
	t.Helper()
	u, err := s.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func judge(t *testing.T, env []string, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(judgeBinary(t), args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd
}

func TestCLI_MissingCredentials(t *testing.T) {
	cmd := judge(t, []string{"JUDGE_STORE_CREDENTIALS="}, "run")
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected a non-zero exit: %s", output)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, string(output), model.ErrMissingCredentials.Error())
}

func TestCLI_Due(t *testing.T) {
	output, err := judge(t, nil, "due", "--now", "2026-11-01T12:00:00Z").Output()
	require.NoError(t, err)
	assert.Contains(t, string(output), "Due: daily:2026-11-01, monthly:2026-11-01")
}

func TestCLI_FridaySettlement(t *testing.T) {
	ts := newTestStore(t)
	ts.seedUser(t, &model.User{ID: "alice", Balance: 999, ScoreDaily: 50, ScoreWeekly: 80}, 10, 10)
	ts.seedUser(t, &model.User{ID: "bob", Balance: 5, ScoreDaily: 60, ScoreWeekly: 20})
	ts.seedUser(t, &model.User{ID: "carol", Balance: 5})

	env := []string{"JUDGE_STORE_CREDENTIALS=" + ts.creds}
	output, err := judge(t, env, "-o", "json", "run", "--now", "2026-10-16T06:00:00Z").Output()
	require.NoError(t, err)

	var view settlement.ReportView
	require.NoError(t, json.Unmarshal(output, &view))
	assert.Equal(t, 3, view.Users)
	assert.Equal(t, 1, view.Audit.Corrected)
	require.Len(t, view.Periods, 2)
	assert.Empty(t, view.Failures)

	// audited to 25, then daily rank 2 (+2) and weekly rank 1 (+10)
	alice := ts.user(t, "alice")
	assert.Equal(t, int64(25+2+10), alice.Balance)
	assert.Equal(t, int64(7+50), alice.ReputationPoints)
	assert.Zero(t, alice.ScoreDaily)
	assert.Zero(t, alice.ScoreWeekly)

	bob := ts.user(t, "bob")
	assert.Equal(t, int64(5+3+7), bob.Balance)

	carol := ts.user(t, "carol")
	assert.Equal(t, int64(5), carol.Balance)
	assert.Zero(t, carol.ReputationPoints)

	// same local date: nothing is paid again
	_, err = judge(t, env, "run", "--now", "2026-10-16T20:00:00Z").Output()
	require.NoError(t, err)
	assert.Equal(t, alice.Balance, ts.user(t, "alice").Balance)
	assert.Equal(t, bob.Balance, ts.user(t, "bob").Balance)

	output, err = judge(t, env, "-o", "json", "reports").Output()
	require.NoError(t, err)
	var reports []model.AuditReport
	require.NoError(t, json.Unmarshal(output, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, model.UserID("alice"), reports[0].UserID)
}

func TestCLI_Schedule(t *testing.T) {
	ts := newTestStore(t)
	ts.seedUser(t, &model.User{ID: "alice", Balance: 5, ScoreDaily: 10})

	addr := freeAddr(t)
	// a schedule that never fires during the test
	cmd := judge(t, []string{"JUDGE_STORE_CREDENTIALS=" + ts.creds}, "schedule", "--addr", addr, "--cron", "0 0 1 1 *")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view settlement.ReportView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, 1, view.Users)

	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM))
	assert.NoError(t, cmd.Wait())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
