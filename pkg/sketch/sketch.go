// Package sketch is a client of the sketch service, which finds homologs of genomes by minhash.
package sketch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/sdkclient"
	"github.com/kbase/collections/pkg/utils/retry"
	"github.com/sony/gobreaker"
)

// MaxResults is the count of homologs requested per genome.
const MaxResults = 1000

// Homolog is a genome close to the query.
type Homolog struct {
	SourceID string  `json:"sourceid"`
	Dist     float64 `json:"dist"`
}

type Client interface {
	// GetHomologs returns homologs of the workspace object upa in the database searchDB.
	//
	// Errors are ErrSourceDataUnavailable.
	GetHomologs(ctx context.Context, token string, upa string, searchDB string) ([]Homolog, error)
}

type Config struct {
	// timeout of each call.
	Timeout time.Duration

	// max attempts of a call, including the first one.
	Retries int

	// wait before the first retry. It doubles for each retry.
	Backoff time.Duration

	// called when the circuit breaker changes its state.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

type client struct {
	rpc     *sdkclient.Client
	breaker *gobreaker.CircuitBreaker
	config  Config
	logger  *log.Logger
}

func New(rpc *sdkclient.Client, config Config, logger *log.Logger) Client {
	if config.Retries < 1 {
		config.Retries = 1
	}
	if config.Backoff <= 0 {
		config.Backoff = 500 * time.Millisecond
	}

	c := &client{rpc: rpc, config: config, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sketch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return 5 <= counts.ConsecutiveFailures
		},
		// errors replied by the service mean the service is up.
		IsSuccessful: func(err error) bool {
			se := new(sdkclient.ServerError)
			return err == nil || errors.As(err, &se)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Printf("circuit breaker %s: %s -> %s", name, from, to)
			if config.OnStateChange != nil {
				config.OnStateChange(name, from, to)
			}
		},
	})
	return c
}

type getHomologsParams struct {
	WSRef       string `json:"ws_ref"`
	SearchDB    string `json:"search_db"`
	NMaxResults int    `json:"n_max_results"`
}

type getHomologsResult struct {
	Distances []Homolog `json:"distances"`
}

func (c *client) call(ctx context.Context, token string, upa string, searchDB string) ([]Homolog, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	res, err := c.breaker.Execute(func() (any, error) {
		result := getHomologsResult{}
		if err := c.rpc.Call(
			ctx, "get_homologs",
			[]any{getHomologsParams{WSRef: upa, SearchDB: searchDB, NMaxResults: MaxResults}},
			token, &result,
		); err != nil {
			return nil, err
		}
		return result.Distances, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]Homolog), nil
}

func (c *client) GetHomologs(ctx context.Context, token string, upa string, searchDB string) ([]Homolog, error) {
	backoff := retry.Limited(
		c.config.Retries,
		retry.Immediate(retry.ExponentialBackoff(c.config.Backoff, 2)),
	)
	homologs, err := retry.Blocking(ctx, backoff, func() ([]Homolog, error) {
		hs, err := c.call(ctx, token, upa, searchDB)
		if err == nil {
			return hs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		se := new(sdkclient.ServerError)
		if errors.As(err, &se) {
			return nil, err
		}
		// transport errors, timeouts of a call and open breaker.
		c.logger.Printf("sketch: get_homologs for %s: %s", upa, err)
		return nil, fmt.Errorf("%w: %w", retry.ErrRetry, err)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf(
			"%w: sketch service for UPA %s: %w", domerr.ErrSourceDataUnavailable, upa, err,
		)
	}
	return homologs, nil
}
