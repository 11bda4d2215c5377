package workspace_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/sdkclient"
	"github.com/kbase/collections/pkg/utils/cmp"
	"github.com/kbase/collections/pkg/utils/try"
	"github.com/kbase/collections/pkg/workspace"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeWorkspace serves objects and workspaces.
type fakeWorkspace struct {
	mu       sync.Mutex
	calls    map[string]int
	objects  map[string][]any
	readable map[int64]bool
}

func (f *fakeWorkspace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := rpcRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls[req.Method] += 1
	f.mu.Unlock()

	reply := func(result any) {
		json.NewEncoder(w).Encode(map[string]any{"version": "1.1", "result": []any{result}})
	}
	fail := func(message string) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"version": "1.1",
			"error":   map[string]any{"name": "JSONRPCError", "code": -32500, "message": message},
		})
	}

	switch req.Method {
	case "Workspace.get_object_info3":
		params := struct {
			Objects []struct {
				Ref string `json:"ref"`
			} `json:"objects"`
		}{}
		json.Unmarshal(req.Params[0], &params)
		infos := []any{}
		for _, o := range params.Objects {
			info, ok := f.objects[o.Ref]
			if !ok {
				infos = append(infos, nil)
				continue
			}
			infos = append(infos, info)
		}
		reply(map[string]any{"infos": infos, "paths": []any{}})
	case "Workspace.get_workspace_info":
		params := struct {
			ID int64 `json:"id"`
		}{}
		json.Unmarshal(req.Params[0], &params)
		if !f.readable[params.ID] {
			fail("User may not read workspace " + string(req.Params[0]))
			return
		}
		reply([]any{params.ID, "ws", "user"})
	default:
		fail("no such method")
	}
}

func info(wsid, objid, ver int64, typ string, meta map[string]string) []any {
	return []any{objid, "obj", typ, "2024-01-01T00:00:00+0000", ver, "user", wsid, "ws", "chsum", 100, meta}
}

type mapCache struct {
	m map[string]workspace.ObjectInfo
}

func (c *mapCache) Get(_ context.Context, ref string) (workspace.ObjectInfo, bool) {
	i, ok := c.m[ref]
	return i, ok
}

func (c *mapCache) Set(_ context.Context, i workspace.ObjectInfo) {
	c.m[i.Ref] = i
}

func newFake() *fakeWorkspace {
	return &fakeWorkspace{
		calls: map[string]int{},
		objects: map[string][]any{
			"1/2/3":       info(1, 2, 3, "KBaseGenomes.Genome-17.0", map[string]string{"GTDB_lineage": "d__Bacteria"}),
			"1/3/1":       info(1, 3, 1, "KBaseGenomeAnnotations.Assembly-6.3", nil),
			"5/1/1;2/1/1": info(2, 1, 1, "KBaseGenomes.Genome-17.0", map[string]string{}),
		},
		readable: map[int64]bool{1: true},
	}
}

func newTestee(t *testing.T, fake *fakeWorkspace, options ...workspace.Option) workspace.Client {
	svr := httptest.NewServer(fake)
	t.Cleanup(svr.Close)
	rpc := sdkclient.New(svr.URL, sdkclient.WithHTTPClient(svr.Client()))
	return workspace.New(rpc, log.New(io.Discard, "", 0), options...)
}

func TestGetObjectInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("objects are resolved in order", func(t *testing.T) {
		testee := newTestee(t, newFake())
		got := try.To(testee.GetObjectInfo(ctx, "token", []string{"1/3/1", "5/1/1;2/1/1", "1/2/3"}, nil)).OrFatal(t)

		upas := []string{}
		types := []string{}
		for _, i := range got {
			upas = append(upas, i.UPA)
			types = append(types, i.Type)
		}
		if !cmp.SliceEq(upas, []string{"1/3/1", "2/1/1", "1/2/3"}) {
			t.Errorf("unexpected upas: %v", upas)
		}
		if !cmp.SliceEq(types, []string{"KBaseGenomeAnnotations.Assembly", "KBaseGenomes.Genome", "KBaseGenomes.Genome"}) {
			t.Errorf("unexpected types: %v", types)
		}
		if got[2].Metadata["GTDB_lineage"] != "d__Bacteria" {
			t.Errorf("unexpected metadata: %v", got[2].Metadata)
		}
	})

	t.Run("inaccessible object", func(t *testing.T) {
		testee := newTestee(t, newFake())
		_, err := testee.GetObjectInfo(ctx, "token", []string{"1/2/3", "9/9/9"}, nil)
		if !errors.Is(err, domerr.ErrDataPermission) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("type not allowed", func(t *testing.T) {
		testee := newTestee(t, newFake())
		_, err := testee.GetObjectInfo(ctx, "token", []string{"1/2/3", "1/3/1"}, []string{"KBaseGenomes.Genome"})
		if !errors.Is(err, domerr.ErrInvalidInput) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("service down", func(t *testing.T) {
		svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		svr.Close()
		testee := workspace.New(sdkclient.New(svr.URL), log.New(io.Discard, "", 0))
		_, err := testee.GetObjectInfo(ctx, "token", []string{"1/2/3"}, nil)
		if !errors.Is(err, domerr.ErrSourceDataUnavailable) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cached objects are checked for permission", func(t *testing.T) {
		fake := newFake()
		cache := &mapCache{m: map[string]workspace.ObjectInfo{}}
		testee := newTestee(t, fake, workspace.WithCache(cache))

		try.To(testee.GetObjectInfo(ctx, "token", []string{"1/2/3"}, nil)).OrFatal(t)
		if _, ok := cache.m["1/2/3"]; !ok {
			t.Fatal("object is not cached")
		}

		try.To(testee.GetObjectInfo(ctx, "token", []string{"1/2/3"}, nil)).OrFatal(t)
		if fake.calls["Workspace.get_object_info3"] != 1 {
			t.Errorf("cache is not used: %v", fake.calls)
		}
		if fake.calls["Workspace.get_workspace_info"] != 1 {
			t.Errorf("permission is not checked: %v", fake.calls)
		}

		fake.readable[1] = false
		_, err := testee.GetObjectInfo(ctx, "token", []string{"1/2/3"}, nil)
		if !errors.Is(err, domerr.ErrDataPermission) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCheckReadable(t *testing.T) {
	ctx := context.Background()
	testee := newTestee(t, newFake())

	if err := testee.CheckReadable(ctx, "token", []int64{1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testee.CheckReadable(ctx, "token", []int64{1, 2}); !errors.Is(err, domerr.ErrDataPermission) {
		t.Errorf("unexpected error: %v", err)
	}
}
