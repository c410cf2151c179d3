package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoAITrader/tradegate/internal/model"
)

func auditEntry(id, market, op string) *model.AuditLog {
	return &model.AuditLog{
		ID:        id,
		Market:    market,
		Operation: op,
		Method:    "POST",
		Path:      "/v1/markets/" + market + "/activate",
		CreatedAt: time.Now().UTC(),
	}
}

func TestAuditRingServesNewestFirst(t *testing.T) {
	svc, err := NewAuditService(t.TempDir(), 3, nil)
	require.NoError(t, err)
	defer svc.Close()

	for i := 1; i <= 5; i++ {
		svc.Log(auditEntry(fmt.Sprintf("req-%d", i), "us", "activate"))
	}

	records, err := svc.List(context.Background(), "", 10, nil, nil)
	require.NoError(t, err)

	// Ring of 3: entries 1 and 2 were evicted, newest first.
	require.Len(t, records, 3)
	assert.Equal(t, "req-5", records[0].ID)
	assert.Equal(t, "req-4", records[1].ID)
	assert.Equal(t, "req-3", records[2].ID)
}

func TestAuditRingFiltersByMarket(t *testing.T) {
	svc, err := NewAuditService(t.TempDir(), 10, nil)
	require.NoError(t, err)
	defer svc.Close()

	svc.Log(auditEntry("a", "us", "activate"))
	svc.Log(auditEntry("b", "cn", "save_config"))
	svc.Log(auditEntry("c", "us", "save_config"))

	records, err := svc.List(context.Background(), "cn", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)

	records, err = svc.List(context.Background(), "us", 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c", records[0].ID, "limit keeps the newest entry")
}

func TestAuditCloseFlushesFile(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewAuditService(dir, 10, nil)
	require.NoError(t, err)

	svc.Log(auditEntry("x", "us", "activate"))
	svc.Log(auditEntry("y", "crypto", "import"))
	svc.Close()

	name := filepath.Join(dir, "audit-"+time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry model.AuditLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		ids = append(ids, entry.ID)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"x", "y"}, ids)
}

func TestAuditListFallsBackWhenRepoFails(t *testing.T) {
	svc, err := NewAuditService(t.TempDir(), 10, failingAuditRepo{})
	require.NoError(t, err)
	defer svc.Close()

	svc.Log(auditEntry("ring-only", "us", "activate"))

	records, err := svc.List(context.Background(), "", 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ring-only", records[0].ID)
}

type failingAuditRepo struct{}

func (failingAuditRepo) Insert(context.Context, *model.AuditLog) error {
	return fmt.Errorf("repo down")
}

func (failingAuditRepo) List(context.Context, string, int, *time.Time, *time.Time) ([]*model.AuditLog, error) {
	return nil, fmt.Errorf("repo down")
}
