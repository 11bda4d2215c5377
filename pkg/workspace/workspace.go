// Package workspace resolves workspace objects through the KBase workspace service.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/sdkclient"
	"golang.org/x/sync/errgroup"
)

const (
	// objects per get_object_info3 call.
	batchSize = 1000

	// concurrent calls to the workspace service in a lookup.
	concurrency = 10
)

// ObjectInfo is a workspace object version.
type ObjectInfo struct {
	// the reference path requested.
	Ref string `json:"ref"`

	// "W/O/V" of the object.
	UPA  string `json:"upa"`
	Name string `json:"name"`

	// type name without version, like "KBaseGenomes.Genome".
	Type string `json:"type"`

	Metadata map[string]string `json:"metadata"`
}

// Client looks up workspace objects.
type Client interface {
	// GetObjectInfo returns infos of objects at paths, in order.
	//
	// Errors
	//
	// - ErrDataPermission: an object is not found, or the user can not read it.
	//
	// - ErrInvalidInput: an object has a type not in allowedTypes (when it is not empty).
	//
	// - ErrSourceDataUnavailable: the workspace service can not be used.
	GetObjectInfo(ctx context.Context, token string, paths []string, allowedTypes []string) ([]ObjectInfo, error)

	// CheckReadable checks that the user can read workspaces.
	//
	// Errors are same as GetObjectInfo.
	CheckReadable(ctx context.Context, token string, wsids []int64) error
}

type client struct {
	rpc    *sdkclient.Client
	cache  Cache
	logger *log.Logger
}

type Option func(*client) *client

// WithCache makes the client look up objects in the cache first.
func WithCache(c Cache) Option {
	return func(cl *client) *client {
		cl.cache = c
		return cl
	}
}

func New(rpc *sdkclient.Client, logger *log.Logger, options ...Option) Client {
	c := &client{rpc: rpc, cache: NopCache{}, logger: logger}
	for _, o := range options {
		c = o(c)
	}
	return c
}

// mapError translates errors from the service into domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	se := new(sdkclient.ServerError)
	if errors.As(err, &se) {
		for _, phrase := range []string{
			"may not read workspace", "No workspace with id", "is deleted", "has been deleted",
		} {
			if strings.Contains(se.Message, phrase) {
				return domerr.NewInputError(domerr.ErrDataPermission, "%s", se.Message)
			}
		}
		return fmt.Errorf("%w: workspace: %s", domerr.ErrSourceDataUnavailable, se.Message)
	}
	return fmt.Errorf("%w: workspace: %w", domerr.ErrSourceDataUnavailable, err)
}

func (c *client) CheckReadable(ctx context.Context, token string, wsids []int64) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for _, wsid := range wsids {
		wsid := wsid
		eg.Go(func() error {
			err := c.rpc.Call(
				ctx, "Workspace.get_workspace_info",
				[]any{map[string]any{"id": wsid}}, token, nil,
			)
			return mapError(err)
		})
	}
	return eg.Wait()
}

type objectRef struct {
	Ref string `json:"ref"`
}

type getObjectInfoParams struct {
	Objects         []objectRef `json:"objects"`
	IgnoreErrors    int         `json:"ignoreErrors"`
	IncludeMetadata int         `json:"includeMetadata"`
}

type getObjectInfoResult struct {
	Infos []*infoTuple `json:"infos"`
}

// infoTuple is object_info of the workspace.
//
// [objid, name, type, save_date, version, saved_by, wsid, workspace, chsum, size, meta]
type infoTuple [11]json.RawMessage

func (t infoTuple) parse(ref string) (ObjectInfo, error) {
	var objid, ver, wsid int64
	var name, typ string
	var meta map[string]string
	for _, f := range []struct {
		index int
		dest  any
	}{
		{index: 0, dest: &objid},
		{index: 1, dest: &name},
		{index: 2, dest: &typ},
		{index: 4, dest: &ver},
		{index: 6, dest: &wsid},
		{index: 10, dest: &meta},
	} {
		if len(t[f.index]) == 0 {
			continue
		}
		if err := json.Unmarshal(t[f.index], f.dest); err != nil {
			return ObjectInfo{}, fmt.Errorf("%w: workspace: malformed object info of %s: %w", domerr.ErrSourceDataUnavailable, ref, err)
		}
	}
	if meta == nil {
		meta = map[string]string{}
	}
	typ, _, _ = strings.Cut(typ, "-")
	return ObjectInfo{
		Ref:      ref,
		UPA:      domain.ObjectRef{Workspace: wsid, Object: objid, Version: ver}.String(),
		Name:     name,
		Type:     typ,
		Metadata: meta,
	}, nil
}

// fetch calls get_object_info3 for paths.
func (c *client) fetch(ctx context.Context, token string, paths []string) ([]ObjectInfo, error) {
	refs := make([]objectRef, len(paths))
	for i, p := range paths {
		refs[i] = objectRef{Ref: p}
	}
	results := []getObjectInfoResult{}
	if err := c.rpc.Call(
		ctx, "Workspace.get_object_info3",
		[]any{getObjectInfoParams{Objects: refs, IgnoreErrors: 1, IncludeMetadata: 1}},
		token, &results,
	); err != nil {
		return nil, mapError(err)
	}
	if len(results) != 1 || len(results[0].Infos) != len(paths) {
		return nil, fmt.Errorf("%w: workspace: unexpected count of object infos", domerr.ErrSourceDataUnavailable)
	}

	ret := make([]ObjectInfo, len(paths))
	for i, t := range results[0].Infos {
		if t == nil {
			return nil, domerr.NewInputError(
				domerr.ErrDataPermission,
				"object %s is not accessible or does not exist", paths[i],
			)
		}
		info, err := t.parse(paths[i])
		if err != nil {
			return nil, err
		}
		ret[i] = info
	}
	return ret, nil
}

func (c *client) GetObjectInfo(ctx context.Context, token string, paths []string, allowedTypes []string) ([]ObjectInfo, error) {
	ret := make([]ObjectInfo, len(paths))

	misses := []int{}
	hitWSIDs := []int64{}
	for i, p := range paths {
		info, ok := c.cache.Get(ctx, p)
		if !ok {
			misses = append(misses, i)
			continue
		}
		ret[i] = info
		head, _, _ := strings.Cut(p, ";")
		if ref, ok := domain.ParseUPA(head); ok {
			hitWSIDs = append(hitWSIDs, ref.Workspace)
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	// cached infos do not tell that the user can read them.
	if len(hitWSIDs) != 0 {
		slices.Sort(hitWSIDs)
		hitWSIDs = slices.Compact(hitWSIDs)
		eg.Go(func() error {
			return c.CheckReadable(egctx, token, hitWSIDs)
		})
	}

	for head := 0; head < len(misses); head += batchSize {
		batch := misses[head:min(head+batchSize, len(misses))]
		eg.Go(func() error {
			ps := make([]string, len(batch))
			for i, idx := range batch {
				ps[i] = paths[idx]
			}
			infos, err := c.fetch(egctx, token, ps)
			if err != nil {
				return err
			}
			for i, idx := range batch {
				ret[idx] = infos[i]
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, idx := range misses {
		c.cache.Set(ctx, ret[idx])
	}

	if len(allowedTypes) != 0 {
		for _, info := range ret {
			if !slices.Contains(allowedTypes, info.Type) {
				return nil, domerr.NewInputError(
					domerr.ErrInvalidInput,
					"object %s has type %s which is not one of %v", info.Ref, info.Type, allowedTypes,
				)
			}
		}
	}
	return ret, nil
}
