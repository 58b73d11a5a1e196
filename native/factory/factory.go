package factory

import (
	"encoding/binary"
	"errors"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/events"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/sale"
)

var (
	// ErrNotOwner rejects template swaps from anyone but the factory owner.
	ErrNotOwner = errors.New("factory: caller is not the owner")
	// ErrNilTemplate rejects registering an empty template.
	ErrNilTemplate = errors.New("factory: template required")
	// ErrNoTemplate rejects instantiation before a template is registered.
	ErrNoTemplate = errors.New("factory: no template registered")
)

// Template is the collaborator wiring every new sale instance is cloned with.
// Instances share nothing mutable beyond these read-only collaborator
// references and the common state backend.
type Template struct {
	State      sale.EngineState
	Emitter    events.Emitter
	Token      sale.TokenLedger
	Membership sale.Membership
	Converter  sale.Converter
	Router     sale.FundsRouter
}

// Factory instantiates independent sale engines from a registered template
// and records them in a per-creator registry.
type Factory struct {
	mu        sync.Mutex
	owner     [20]byte
	template  *Template
	emitter   events.Emitter
	instances map[[32]byte]*sale.Engine
	counts    map[[20]byte]uint64
}

// New constructs a factory owned by the supplied account.
func New(owner [20]byte) *Factory {
	return &Factory{
		owner:     owner,
		emitter:   events.NoopEmitter{},
		instances: make(map[[32]byte]*sale.Engine),
		counts:    make(map[[20]byte]uint64),
	}
}

// SetEmitter configures the event emitter used for creation events.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// SetTemplate registers the collaborator template used for new instances.
// Owner only; a nil template is rejected.
func (f *Factory) SetTemplate(caller [20]byte, template *Template) error {
	if template == nil || template.State == nil {
		return ErrNilTemplate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.owner {
		return ErrNotOwner
	}
	f.template = template
	return nil
}

// Create instantiates a new sale engine from the template, initializes it
// with the supplied configuration and registers it under the creator.
func (f *Factory) Create(creator [20]byte, cfg sale.Config) (*sale.Engine, [32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.template == nil {
		return nil, [32]byte{}, ErrNoTemplate
	}
	count := f.counts[creator]
	id := instanceID(creator, count)
	engine := f.newFromTemplate()
	if _, err := engine.Initialize(id, cfg); err != nil {
		return nil, [32]byte{}, err
	}
	f.instances[id] = engine
	f.counts[creator] = count + 1
	f.emitter.Emit(events.FactoryInstantiation{Creator: creator, Instance: id, Count: count + 1})
	return engine, id, nil
}

// Load rebuilds the engine for an instance the creator produced in an
// earlier process and registers it. The instance count is advanced so later
// Create calls keep deriving fresh ids.
func (f *Factory) Load(creator [20]byte, count uint64) (*sale.Engine, [32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.template == nil {
		return nil, [32]byte{}, ErrNoTemplate
	}
	id := instanceID(creator, count)
	engine := f.newFromTemplate()
	if _, err := engine.Load(id); err != nil {
		return nil, [32]byte{}, err
	}
	f.instances[id] = engine
	if f.counts[creator] <= count {
		f.counts[creator] = count + 1
	}
	return engine, id, nil
}

func (f *Factory) newFromTemplate() *sale.Engine {
	engine := sale.NewEngine()
	engine.SetState(f.template.State)
	engine.SetEmitter(f.template.Emitter)
	engine.SetTokenLedger(f.template.Token)
	engine.SetMembership(f.template.Membership)
	engine.SetConverter(f.template.Converter)
	engine.SetRouter(f.template.Router)
	return engine
}

// IsInstantiation reports whether the id was produced by this factory.
func (f *Factory) IsInstantiation(id [32]byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.instances[id]
	return ok
}

// InstantiationCount returns how many instances the creator has produced.
func (f *Factory) InstantiationCount(creator [20]byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[creator]
}

// Get returns the engine registered under the id.
func (f *Factory) Get(id [32]byte) (*sale.Engine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	engine, ok := f.instances[id]
	return engine, ok
}

func instanceID(creator [20]byte, count uint64) [32]byte {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], count)
	digest := ethcrypto.Keccak256([]byte("sale/instance"), creator[:], nonce[:])
	var id [32]byte
	copy(id[:], digest)
	return id
}
