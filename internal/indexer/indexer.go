// Package indexer maintains the on-disk pool catalog used to seed both the
// simulator and the trade graph, plus the per-protocol cursor checkpoints
// that let a restart resume each protocol's event stream where it left off
// instead of replaying from genesis.
package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/dex"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/trade"
	"sui-arb-engine/internal/types"
)

// PersistedPoolRecord is the on-disk shape of one catalog entry. It is a
// plain JSON projection of types.Pool, kept as its own type so the wire
// format can evolve independently of the in-memory Pool representation.
type PersistedPoolRecord struct {
	ID       types.ObjectId      `json:"id"`
	Protocol types.ProtocolTag   `json:"protocol"`
	Tokens   []types.Token       `json:"tokens"`
	Extra    types.ProtocolExtra `json:"extra"`
}

func toRecord(p types.Pool) PersistedPoolRecord {
	return PersistedPoolRecord{ID: p.ID, Protocol: p.Protocol, Tokens: p.Tokens, Extra: p.Extra}
}

func (r PersistedPoolRecord) toPool() types.Pool {
	return types.Pool{ID: r.ID, Protocol: r.Protocol, Tokens: r.Tokens, Extra: r.Extra}
}

// CursorFile records the last checkpoint processed per protocol, so a
// restart can resume each protocol's live event stream independently
// instead of from genesis. Protocols move at different block rates and are
// indexed off separate event subscriptions, so one shared cursor would
// force every protocol to replay whenever the slowest one lagged.
type CursorFile map[string]ProtocolCursor

// ProtocolCursor is one protocol's checkpoint within a CursorFile.
type ProtocolCursor struct {
	EventSeq uint64 `json:"event_seq"`
	EpochID  uint64 `json:"epoch_id"`
}

// Catalog is a file-backed, in-memory pool catalog. Load reads one
// append-only text file per protocol at startup (each line a JSON-encoded
// PersistedPoolRecord); Save appends only the pools inserted since the
// last Save call, so a long-running indexer never rewrites history it has
// already durably recorded.
type Catalog struct {
	mu      sync.RWMutex
	dir     string
	pools   map[types.ObjectId]types.Pool
	cursor  CursorFile
	pending []types.Pool // upserts not yet appended to their protocol file
}

// Open loads (or initialises empty) a Catalog rooted at dir. dir is
// created if absent.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, arberr.Wrap(err, "create catalog dir")
	}
	c := &Catalog{dir: dir, pools: make(map[types.ObjectId]types.Pool), cursor: make(CursorFile)}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) protocolFile(p types.ProtocolTag) string {
	return filepath.Join(c.dir, "pools-"+p.String()+".jsonl")
}

func (c *Catalog) cursorPath() string { return filepath.Join(c.dir, "cursor.json") }

func (c *Catalog) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return arberr.Wrap(err, "list catalog dir")
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) < len("pools-.jsonl") || name[:6] != "pools-" {
			continue
		}
		if err := c.loadProtocolFile(filepath.Join(c.dir, name)); err != nil {
			return err
		}
	}

	if data, err := os.ReadFile(c.cursorPath()); err == nil {
		if err := json.Unmarshal(data, &c.cursor); err != nil {
			return arberr.Wrap(err, "parse cursor file")
		}
	} else if !os.IsNotExist(err) {
		return arberr.Wrap(err, "read cursor file")
	}

	return nil
}

func (c *Catalog) loadProtocolFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return arberr.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r PersistedPoolRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return arberr.Wrapf(err, "parse record in %s", path)
		}
		// Later lines for the same pool id supersede earlier ones, since
		// the file is append-only and an Upsert always appends, never
		// rewrites a prior line.
		c.pools[r.ID] = r.toPool()
	}
	return scanner.Err()
}

// Upsert inserts or replaces a pool entry in memory and queues it to be
// appended to its protocol file on the next Save call.
func (c *Catalog) Upsert(p types.Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[p.ID] = p
	c.pending = append(c.pending, p)
}

// Get returns the catalog entry for id, if present.
func (c *Catalog) Get(id types.ObjectId) (types.Pool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[id]
	return p, ok
}

// All returns every pool currently in the catalog, in no particular order.
func (c *Catalog) All() []types.Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Pool, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p)
	}
	return out
}

// SetCursor updates protocol's in-memory checkpoint. Callers must call
// Save to persist it.
func (c *Catalog) SetCursor(protocol types.ProtocolTag, cur ProtocolCursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor[protocol.String()] = cur
}

// Cursor returns protocol's current in-memory checkpoint.
func (c *Catalog) Cursor(protocol types.ProtocolTag) ProtocolCursor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor[protocol.String()]
}

// Save appends every pool queued by Upsert since the last Save to its
// protocol's file, then clears the queue, and rewrites the single cursor
// file wholesale by writing a temporary file and renaming it over the old
// one (cursor state is small and changes every tick, so wholesale rewrite
// there is cheap; the pool catalog is not, hence the append-only
// file-per-protocol split).
func (c *Catalog) Save() error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	cursor := c.cursor
	c.mu.Unlock()

	byProtocol := make(map[types.ProtocolTag][]types.Pool)
	for _, p := range pending {
		byProtocol[p.Protocol] = append(byProtocol[p.Protocol], p)
	}
	for protocol, pools := range byProtocol {
		if err := c.appendProtocolFile(protocol, pools); err != nil {
			return err
		}
	}

	cursorData, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return arberr.Wrap(err, "marshal cursor file")
	}
	tmp := c.cursorPath() + ".tmp"
	if err := os.WriteFile(tmp, cursorData, 0o644); err != nil {
		return arberr.Wrap(err, "write cursor file")
	}
	if err := os.Rename(tmp, c.cursorPath()); err != nil {
		return arberr.Wrap(err, "replace cursor file")
	}
	return nil
}

func (c *Catalog) appendProtocolFile(protocol types.ProtocolTag, pools []types.Pool) error {
	f, err := os.OpenFile(c.protocolFile(protocol), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return arberr.Wrapf(err, "open %s pool file", protocol)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range pools {
		line, err := json.Marshal(toRecord(p))
		if err != nil {
			return arberr.Wrap(err, "marshal pool record")
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return arberr.Wrapf(err, "append %s pool file", protocol)
		}
	}
	return w.Flush()
}

// DexSearcher answers catalog lookups the trade and strategy packages need:
// which pools trade a given coin, every known pool, resolving a pool id
// seen in an object change back to its catalog entry, and building live
// Dex adapters (or a literal test path) from that catalog through a
// Simulator.
type DexSearcher interface {
	PoolsForCoin(coin types.TypeTag) []types.Pool
	AllPools() []types.Pool
	PoolByID(id types.ObjectId) (types.Pool, bool)

	// FindDexes returns one Dex adapter per pool that trades coinIn,
	// optionally restricted to pools that also trade coinOut.
	FindDexes(ctx context.Context, sm sim.Simulator, coinIn types.TypeTag, coinOut *types.TypeTag) ([]dex.Dex, error)

	// FindTestPath builds the literal Path that walks poolIDs in order,
	// failing if any id is unknown or the resulting hops don't chain
	// into a valid Path. Used by operational tooling (see cmd/arbd's
	// dry-run subcommand) to dry-run a specific cycle by hand.
	FindTestPath(ctx context.Context, sm sim.Simulator, poolIDs []types.ObjectId) (trade.Path, error)
}

// catalogSearcher adapts a Catalog to DexSearcher by linear scan; the
// catalog size (one entry per known pool) is small enough that an index
// isn't warranted.
type catalogSearcher struct{ c *Catalog }

// NewDexSearcher wraps c as a DexSearcher.
func NewDexSearcher(c *Catalog) DexSearcher { return catalogSearcher{c: c} }

func (s catalogSearcher) PoolsForCoin(coin types.TypeTag) []types.Pool {
	var out []types.Pool
	for _, p := range s.c.All() {
		for _, tok := range p.Tokens {
			if tok.Type == coin {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (s catalogSearcher) AllPools() []types.Pool { return s.c.All() }

func (s catalogSearcher) PoolByID(id types.ObjectId) (types.Pool, bool) { return s.c.Get(id) }

func (s catalogSearcher) FindDexes(ctx context.Context, sm sim.Simulator, coinIn types.TypeTag, coinOut *types.TypeTag) ([]dex.Dex, error) {
	var out []dex.Dex
	for _, p := range s.PoolsForCoin(coinIn) {
		if coinOut != nil {
			matched := false
			for _, tok := range p.Tokens {
				if tok.Type == *coinOut {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		d, err := dex.New(ctx, sm, p, coinIn)
		if err != nil {
			continue // unreadable or unsupported pool is skipped, not fatal
		}
		out = append(out, d)
	}
	return out, nil
}

func (s catalogSearcher) FindTestPath(ctx context.Context, sm sim.Simulator, poolIDs []types.ObjectId) (trade.Path, error) {
	if len(poolIDs) == 0 {
		return trade.Path{}, arberr.Wrap(arberr.ErrPathMismatch, "empty pool id sequence")
	}
	pools := make([]types.Pool, 0, len(poolIDs))
	for _, id := range poolIDs {
		p, ok := s.c.Get(id)
		if !ok {
			return trade.Path{}, arberr.Wrapf(arberr.ErrPoolMissing, "pool %s not in catalog", id)
		}
		pools = append(pools, p)
	}

	coin := pools[0].Tokens[0].Type
	hops := make([]dex.Dex, 0, len(pools))
	for _, p := range pools {
		d, err := dex.New(ctx, sm, p, coin)
		if err != nil {
			return trade.Path{}, err
		}
		hops = append(hops, d)
		coin = d.CoinOutType()
	}
	path := trade.Path{Hops: hops}
	return path, path.Validate()
}
