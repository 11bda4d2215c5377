package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbase/collections/pkg/conn/db/postgres/pool/testenv"
	"github.com/kbase/collections/pkg/domain/schema/db/postgres"
	"github.com/kbase/collections/pkg/utils/try"
)

func TestPgSchema_Latest(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"1", "3", "10", "not-a-version"} {
		if err := os.Mkdir(filepath.Join(root, d), os.ModePerm); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("readme"), 0o644); err != nil {
		t.Fatal(err)
	}

	testee := postgres.New(nil, root)
	latest := try.To(testee.Latest()).OrFatal(t)
	if latest != 10 {
		t.Errorf("unexpected latest version: %d", latest)
	}
}

func TestPgSchema_Upgrade(t *testing.T) {
	ctx := context.Background()
	pool := testenv.NewPoolBroaker(ctx, t).GetPool(ctx, t)

	testee := postgres.New(pool, testenv.SchemaRepository())

	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
	// upgrading is idempotent
	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}

	current := try.To(testee.Version(ctx)).OrFatal(t)
	latest := try.To(testee.Latest()).OrFatal(t)
	if current != latest {
		t.Errorf("schema is not latest: (current, latest) = (%d, %d)", current, latest)
	}

	sctx, cancel := testee.Context(ctx)
	defer cancel()
	if err := context.Cause(sctx); err != nil {
		t.Errorf("context for latest schema is done: %v", err)
	}
}

func TestNullSchema(t *testing.T) {
	ctx := context.Background()
	testee := postgres.Null()
	if err := testee.Upgrade(ctx); err == nil {
		t.Error("null schema can be upgraded")
	}
	sctx, cancel := testee.Context(ctx)
	defer cancel()
	if sctx.Err() != nil {
		t.Error("context is done")
	}
}
