package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/engines/maple/internal"
	"github.com/kvmkrao/hdf5/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum          = "MAPLEDB\x00"          // File format identifier
	mapleVersion      = 4                      // Database version (4 = versioned objects)
	defaultGCInterval = 500 * time.Millisecond // Default interval between prune runs
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory object database
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for id mixing
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Highest write index seen

	// version pruning
	gcInterval  time.Duration
	retention   uint64
	gcIsRunning atomic.Bool
	gcStop      chan struct{}
	gcDone      sync.WaitGroup
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards  int           // Number of shards
	GCInterval time.Duration // Time between prune runs (0 = default)
	// VersionRetention is the number of write indices of history kept for old read
	// contexts. Versions older than WriteIdx()-VersionRetention that are shadowed by a
	// newer version are dropped. 0 keeps the whole history and disables pruning.
	VersionRetention uint64
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.ObjectDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = defaultGCInterval
	}

	newDB := &mapleImpl{
		numShards:  opts.NumShards,
		seed:       util.GenerateSeed(),
		shards:     newShards(opts.NumShards),
		gcInterval: opts.GCInterval,
		retention:  opts.VersionRetention,
	}

	if newDB.retention > 0 {
		newDB.startGC()
	}

	return newDB
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardOf returns the shard responsible for the object id
func (maple *mapleImpl) shardOf(id db.ObjectID) *internal.Shard {
	return internal.GetShard(util.HashID(uint64(id), maple.seed), maple.shards)
}

// object loads an object or returns ErrObjectNotFound
func (maple *mapleImpl) object(id db.ObjectID) (*internal.Object, error) {
	obj, ok := maple.shardOf(id).Objects.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", db.ErrObjectNotFound, id)
	}
	return obj, nil
}

// kvObject loads an object and checks that it holds key/value entries
func (maple *mapleImpl) kvObject(id db.ObjectID) (*internal.Object, error) {
	obj, err := maple.object(id)
	if err != nil {
		return nil, err
	}
	if obj.Type != db.ObjectTypeKV {
		return nil, fmt.Errorf("%w: object %d is of type %s", db.ErrWrongType, id, obj.Type)
	}
	return obj, nil
}

// --------------------------------------------------------------------------
// Object Operations
// --------------------------------------------------------------------------

// CreateObject creates a new object if the id is unused.
//
// Thread-safety: LoadOrCompute guarantees that exactly one of several concurrent
// callers for the same id creates the object.
func (maple *mapleImpl) CreateObject(id db.ObjectID, typ db.ObjectType, writeIdx uint64) error {
	if !id.IsDefined() {
		return fmt.Errorf("cannot create object with undefined id")
	}
	maple.SetWriteIdx(writeIdx)

	created := false
	maple.shardOf(id).Objects.LoadOrCompute(id, func() *internal.Object {
		created = true
		return internal.NewObject(id, typ, writeIdx)
	})
	if !created {
		return fmt.Errorf("%w: %d", db.ErrObjectExists, id)
	}
	return nil
}

func (maple *mapleImpl) HasObject(id db.ObjectID) (db.ObjectType, bool) {
	obj, ok := maple.shardOf(id).Objects.Load(id)
	if !ok {
		return 0, false
	}
	return obj.Type, true
}

func (maple *mapleImpl) SetScratch(id db.ObjectID, sp db.ScratchPad, checksum uint64, writeIdx uint64) error {
	obj, err := maple.object(id)
	if err != nil {
		return err
	}
	maple.SetWriteIdx(writeIdx)
	return obj.SetScratch(internal.ScratchVersion{Pad: sp, Checksum: checksum, Index: writeIdx})
}

func (maple *mapleImpl) GetScratch(id db.ObjectID, readIdx uint64) (db.ScratchPad, uint64, error) {
	obj, err := maple.object(id)
	if err != nil {
		return db.ScratchPad{}, 0, err
	}
	v, ok := obj.Scratch(readIdx)
	if !ok {
		return db.ScratchPad{}, 0, fmt.Errorf("%w: object %d at index %d", db.ErrScratchMissing, id, readIdx)
	}
	return v.Pad, v.Checksum, nil
}

// --------------------------------------------------------------------------
// KV Operations
// --------------------------------------------------------------------------

// Set inserts a new version of key. The value is copied.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(id db.ObjectID, key string, value []byte, writeIdx uint64) error {
	obj, err := maple.kvObject(id)
	if err != nil {
		return err
	}
	maple.SetWriteIdx(writeIdx)

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	obj.Entries.Compute(key, func(old internal.Chain, _ bool) (internal.Chain, bool) {
		return old.With(internal.Version{Value: valueCopy, Index: writeIdx}), false
	})
	return nil
}

// Get returns a copy of the value visible at readIdx.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(id db.ObjectID, key string, readIdx uint64) ([]byte, error) {
	obj, err := maple.kvObject(id)
	if err != nil {
		return nil, err
	}

	chain, ok := obj.Entries.Load(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	v, ok := chain.At(readIdx)
	if !ok || v.Deleted {
		return nil, db.ErrKeyNotFound
	}

	data := make([]byte, len(v.Value))
	copy(data, v.Value)
	return data, nil
}

// Delete appends a tombstone to the key's chain.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(id db.ObjectID, key string, writeIdx uint64) error {
	obj, err := maple.kvObject(id)
	if err != nil {
		return err
	}
	maple.SetWriteIdx(writeIdx)

	var found bool
	obj.Entries.Compute(key, func(old internal.Chain, loaded bool) (internal.Chain, bool) {
		if !loaded {
			return old, true // delete, else an empty chain would be created
		}
		if !old.Live(writeIdx) {
			return old, false
		}
		found = true
		return old.With(internal.Version{Index: writeIdx, Deleted: true}), false
	})

	if !found {
		return db.ErrKeyNotFound
	}
	return nil
}

func (maple *mapleImpl) Count(id db.ObjectID, readIdx uint64) (uint64, error) {
	obj, err := maple.kvObject(id)
	if err != nil {
		return 0, err
	}

	var n uint64
	obj.Entries.Range(func(_ string, chain internal.Chain) bool {
		if chain.Live(readIdx) {
			n++
		}
		return true
	})
	return n, nil
}

// --------------------------------------------------------------------------
// Version Pruning
// --------------------------------------------------------------------------

// startGC starts the pruning loop if it is not running
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) startGC() {
	if maple.gcIsRunning.CompareAndSwap(false, true) {
		maple.gcStop = make(chan struct{})
		maple.gcDone.Add(1)
		go maple.garbageCollector(maple.gcStop)
	}
}

// stopGC stops the pruning loop and waits for the current run to finish
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) stopGC() {
	if maple.gcIsRunning.CompareAndSwap(true, false) {
		close(maple.gcStop)
		maple.gcDone.Wait()
	}
}

// garbageCollector prunes all shards once per interval until stop is closed
// WARNING: this method should never be called directly! use startGC() and stopGC()
func (maple *mapleImpl) garbageCollector(stop <-chan struct{}) {
	defer maple.gcDone.Done()

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		/*
			Note: the horizon is computed once per run. Versions written while the
			run is in progress are newer than the horizon and never touched.
		*/
		curr := maple.currIndex.Load()
		if curr <= maple.retention {
			continue
		}
		maple.prune(curr - maple.retention)
	}
}

// prune collapses the history of every key to what reads at index >= horizon can see
func (maple *mapleImpl) prune(horizon uint64) {
	var wg sync.WaitGroup
	wg.Add(len(maple.shards))

	for _, shard := range maple.shards {
		go func(s *internal.Shard) {
			defer wg.Done()
			s.Objects.Range(func(_ db.ObjectID, obj *internal.Object) bool {
				obj.Entries.Range(func(key string, _ internal.Chain) bool {
					obj.Entries.Compute(key, func(chain internal.Chain, loaded bool) (internal.Chain, bool) {
						if !loaded {
							return chain, true
						}
						pruned, keep := chain.Prune(horizon)
						return pruned, !keep
					})
					return true
				})
				return true
			})
		}(shard)
	}

	wg.Wait()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// Concurrent writes are allowed but the snapshot is fuzzy, the caller
// (the replicated store) is responsible for a consistent cut.
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	var objects []*internal.Object
	for _, shard := range maple.shards {
		shard.Objects.Range(func(_ db.ObjectID, obj *internal.Object) bool {
			objects = append(objects, obj)
			return true
		})
	}

	enc := &encoder{w: bw}

	// header
	enc.bytes([]byte(magicNum))
	enc.u8(mapleVersion)
	enc.u64(maple.seed)
	enc.u64(maple.currIndex.Load())
	enc.u64(uint64(len(objects)))

	for _, obj := range objects {
		enc.u64(uint64(obj.ID))
		enc.u8(uint8(obj.Type))
		enc.u64(obj.Created)

		// scratch pad versions
		scratch := obj.ScratchVersions()
		enc.u32(uint32(len(scratch)))
		for _, sv := range scratch {
			enc.u64(sv.Index)
			enc.u64(sv.Checksum)
			for _, slot := range sv.Pad {
				enc.u64(uint64(slot))
			}
		}

		// entries
		type keyChain struct {
			key   string
			chain internal.Chain
		}
		var entries []keyChain
		obj.Entries.Range(func(key string, chain internal.Chain) bool {
			entries = append(entries, keyChain{key, chain})
			return true
		})

		enc.u32(uint32(len(entries)))
		for _, e := range entries {
			enc.u32(uint32(len(e.key)))
			enc.bytes([]byte(e.key))
			enc.u32(uint32(len(e.chain)))
			for _, v := range e.chain {
				enc.u64(v.Index)
				if v.Deleted {
					enc.u8(1)
				} else {
					enc.u8(0)
				}
				enc.u32(uint32(len(v.Value)))
				enc.bytes(v.Value)
			}
		}
	}

	if enc.err != nil {
		return enc.err
	}
	return bw.Flush()
}

// Load restores a database from the reader, replacing all current state
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	// stop pruning during load
	wasRunning := maple.gcIsRunning.Load()
	maple.stopGC()
	if wasRunning {
		defer maple.startGC()
	}

	dec := &decoder{r: bufio.NewReaderSize(r, 1024*1024)}

	magic := dec.bytes(len(magicNum))
	if dec.err != nil {
		return dec.err
	}
	if string(magic) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}
	if version := dec.u8(); dec.err == nil && int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	seed := dec.u64()
	writeIdx := dec.u64()
	objCount := dec.u64()
	if dec.err != nil {
		return dec.err
	}

	maple.seed = seed
	maple.shards = newShards(maple.numShards)
	maple.currIndex.Store(0)

	for i := uint64(0); i < objCount && dec.err == nil; i++ {
		obj := internal.NewObject(db.ObjectID(dec.u64()), db.ObjectType(dec.u8()), dec.u64())

		scratchCount := dec.u32()
		for j := uint32(0); j < scratchCount && dec.err == nil; j++ {
			sv := internal.ScratchVersion{Index: dec.u64(), Checksum: dec.u64()}
			for k := range sv.Pad {
				sv.Pad[k] = db.ObjectID(dec.u64())
			}
			_ = obj.SetScratch(sv)
		}

		entryCount := dec.u32()
		for j := uint32(0); j < entryCount && dec.err == nil; j++ {
			key := string(dec.bytes(int(dec.u32())))
			versions := dec.u32()
			chain := make(internal.Chain, 0, versions)
			for k := uint32(0); k < versions && dec.err == nil; k++ {
				v := internal.Version{Index: dec.u64(), Deleted: dec.u8() == 1}
				v.Value = dec.bytes(int(dec.u32()))
				chain = append(chain, v)
			}
			obj.Entries.Store(key, chain)
		}

		maple.shardOf(obj.ID).Objects.Store(obj.ID, obj)
	}

	if dec.err != nil {
		return dec.err
	}

	maple.SetWriteIdx(writeIdx)
	return nil
}

// encoder writes little endian values and keeps the first error
type encoder struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (e *encoder) bytes(b []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *encoder) u8(v uint8) {
	e.buf[0] = v
	e.bytes(e.buf[:1])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.bytes(e.buf[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	e.bytes(e.buf[:8])
}

// decoder reads little endian values and keeps the first error
type decoder struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, d.err = io.ReadFull(d.r, b)
	return b
}

func (d *decoder) u8() uint8 {
	if d.err == nil {
		_, d.err = io.ReadFull(d.r, d.buf[:1])
	}
	return d.buf[0]
}

func (d *decoder) u32() uint32 {
	if d.err == nil {
		_, d.err = io.ReadFull(d.r, d.buf[:4])
	}
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[:4])
}

func (d *decoder) u64() uint64 {
	if d.err == nil {
		_, d.err = io.ReadFull(d.r, d.buf[:8])
	}
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:8])
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	currentWriteIndex := maple.currIndex.Load()

	histogram := util.NewSizeHistogram()
	samplesPerShard := 100

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		objects    int
		keys       int
		versions   int
		shardSizes = make([]float64, len(maple.shards))
	)
	wg.Add(len(maple.shards))

	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			var objCount, keyCount, versionCount, sampled int
			s.Objects.Range(func(_ db.ObjectID, obj *internal.Object) bool {
				objCount++
				obj.Entries.Range(func(_ string, chain internal.Chain) bool {
					keyCount++
					versionCount += len(chain)
					if sampled < samplesPerShard {
						if v, ok := chain.At(currentWriteIndex); ok && !v.Deleted {
							histogram.AddSample(len(v.Value))
							sampled++
						}
					}
					return true
				})
				return true
			})

			mu.Lock()
			defer mu.Unlock()
			objects += objCount
			keys += keyCount
			versions += versionCount
			shardSizes[i] = float64(objCount)
		}(shardIndex, shard)
	}
	wg.Wait()

	// value estimate plus 8 bytes index and 1 byte tombstone flag per version
	versionOverhead := 9
	valueSize := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100
	sizeBytes := versions * (valueSize + versionOverhead)

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		Objects           int                    `json:"objects"`
		Keys              int                    `json:"keys"`
		Versions          int                    `json:"versions"`
		VersionRetention  uint64                 `json:"version_retention"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: currentWriteIndex,
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Objects:           objects,
		Keys:              keys,
		Versions:          versions,
		VersionRetention:  maple.retention,
		Info:              "SizeBytes is estimated from sampled values.",
	}

	supportedFeatures := []db.Feature{
		db.FeatureCreate, db.FeatureScratchPad,
		db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureCount,
		db.FeatureVersioned,
		db.FeatureSave, db.FeatureLoad,
	}
	if maple.retention > 0 {
		supportedFeatures = append(supportedFeatures, db.FeaturePrune)
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureCreate |
		db.FeatureScratchPad |
		db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureCount |
		db.FeatureVersioned |
		db.FeatureSave |
		db.FeatureLoad
	if maple.retention > 0 {
		supportedFeatures |= db.FeaturePrune
	}
	return supportedFeatures&feature == feature
}

// Close stops version pruning
func (maple *mapleImpl) Close() error {
	maple.stopGC()
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

// SetWriteIdx raises the current index, lower values are ignored
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
