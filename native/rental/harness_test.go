package rental

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"rentpool/crypto"
)

type mockEngineState struct {
	pool      *PoolState
	services  map[uint16]*Service
	positions map[uint64]*LiquidityPosition
	loans     map[uint64]*Loan
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		services:  make(map[uint16]*Service),
		positions: make(map[uint64]*LiquidityPosition),
		loans:     make(map[uint64]*Loan),
	}
}

func (m *mockEngineState) Pool() (*PoolState, error) { return m.pool, nil }

func (m *mockEngineState) PutPool(pool *PoolState) error {
	m.pool = pool
	return nil
}

func (m *mockEngineState) Service(index uint16) (*Service, error) {
	return m.services[index], nil
}

func (m *mockEngineState) PutService(svc *Service) error {
	m.services[svc.Index] = svc
	return nil
}

func (m *mockEngineState) Position(id uint64) (*LiquidityPosition, error) {
	return m.positions[id], nil
}

func (m *mockEngineState) PutPosition(id uint64, pos *LiquidityPosition) error {
	m.positions[id] = pos
	return nil
}

func (m *mockEngineState) DeletePosition(id uint64) error {
	delete(m.positions, id)
	return nil
}

func (m *mockEngineState) Loan(id uint64) (*Loan, error) { return m.loans[id], nil }

func (m *mockEngineState) PutLoan(id uint64, loan *Loan) error {
	m.loans[id] = loan
	return nil
}

func (m *mockEngineState) DeleteLoan(id uint64) error {
	delete(m.loans, id)
	return nil
}

type mockLedger struct {
	balances map[string]map[[20]byte]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (m *mockLedger) balance(token string, addr crypto.Address) *big.Int {
	accounts, ok := m.balances[token]
	if !ok {
		return big.NewInt(0)
	}
	if bal, ok := accounts[addr20(addr)]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (m *mockLedger) set(token string, addr crypto.Address, amount *big.Int) {
	if m.balances[token] == nil {
		m.balances[token] = make(map[[20]byte]*big.Int)
	}
	m.balances[token][addr20(addr)] = new(big.Int).Set(amount)
}

func (m *mockLedger) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	bal := m.balance(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("mock ledger: insufficient %s balance", token)
	}
	m.set(token, from, new(big.Int).Sub(bal, amount))
	m.set(token, to, new(big.Int).Add(m.balance(token, to), amount))
	return nil
}

func (m *mockLedger) Mint(token string, to crypto.Address, amount *big.Int) error {
	m.set(token, to, new(big.Int).Add(m.balance(token, to), amount))
	return nil
}

func (m *mockLedger) Burn(token string, from crypto.Address, amount *big.Int) error {
	bal := m.balance(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("mock ledger: burn exceeds %s balance", token)
	}
	m.set(token, from, new(big.Int).Sub(bal, amount))
	return nil
}

func (m *mockLedger) ForceTransfer(token string, from, to crypto.Address, amount *big.Int) error {
	return m.Transfer(token, from, to, amount)
}

type mockReceipts struct {
	owners map[ReceiptKind]map[uint64]crypto.Address
	seq    map[ReceiptKind]uint64
}

func newMockReceipts() *mockReceipts {
	return &mockReceipts{
		owners: make(map[ReceiptKind]map[uint64]crypto.Address),
		seq:    make(map[ReceiptKind]uint64),
	}
}

func (m *mockReceipts) Mint(kind ReceiptKind, owner crypto.Address) (uint64, error) {
	m.seq[kind]++
	id := m.seq[kind]
	if m.owners[kind] == nil {
		m.owners[kind] = make(map[uint64]crypto.Address)
	}
	m.owners[kind][id] = owner
	return id, nil
}

func (m *mockReceipts) Burn(kind ReceiptKind, id uint64) error {
	if _, ok := m.owners[kind][id]; !ok {
		return fmt.Errorf("mock receipts: unknown receipt %d", id)
	}
	delete(m.owners[kind], id)
	return nil
}

func (m *mockReceipts) OwnerOf(kind ReceiptKind, id uint64) (crypto.Address, error) {
	owner, ok := m.owners[kind][id]
	if !ok {
		return crypto.Address{}, fmt.Errorf("mock receipts: unknown receipt %d", id)
	}
	return owner, nil
}

// mockConverter applies fixed rates against the module's mock balances, in the
// same burn-and-mint fashion as the production converter.
type mockConverter struct {
	ledger  *mockLedger
	account crypto.Address
	rates   map[string]*big.Rat
}

func newMockConverter(ledger *mockLedger, account crypto.Address) *mockConverter {
	return &mockConverter{ledger: ledger, account: account, rates: make(map[string]*big.Rat)}
}

func (m *mockConverter) setRate(source, target string, rate *big.Rat) {
	m.rates[source+"->"+target] = rate
	m.rates[target+"->"+source] = new(big.Rat).Inv(rate)
}

func (m *mockConverter) EstimateConvert(source string, amount *big.Int, target string) (*big.Int, error) {
	if source == target {
		return new(big.Int).Set(amount), nil
	}
	rate, ok := m.rates[source+"->"+target]
	if !ok {
		return nil, fmt.Errorf("mock converter: no rate %s->%s", source, target)
	}
	out := new(big.Rat).Mul(rate, new(big.Rat).SetInt(amount))
	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}

func (m *mockConverter) Convert(source string, amount *big.Int, target string) (*big.Int, error) {
	converted, err := m.EstimateConvert(source, amount, target)
	if err != nil {
		return nil, err
	}
	if source == target {
		return converted, nil
	}
	if err := m.ledger.Burn(source, m.account, amount); err != nil {
		return nil, err
	}
	if err := m.ledger.Mint(target, m.account, converted); err != nil {
		return nil, err
	}
	return converted, nil
}

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

type testEnv struct {
	engine    *Engine
	state     *mockEngineState
	ledger    *mockLedger
	receipts  *mockReceipts
	converter *mockConverter

	module    crypto.Address
	vault     crypto.Address
	owner     crypto.Address
	collector crypto.Address

	now int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		module:    makeAddress(crypto.VaultPrefix, 0x01),
		vault:     makeAddress(crypto.VaultPrefix, 0x02),
		owner:     makeAddress(crypto.RentPrefix, 0x03),
		collector: makeAddress(crypto.RentPrefix, 0x04),
		now:       1_700_000_000,
	}
	engine, err := NewEngine(env.module, env.vault, Config{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	env.state = newMockEngineState()
	env.ledger = newMockLedger()
	env.receipts = newMockReceipts()
	env.converter = newMockConverter(env.ledger, env.module)

	engine.SetState(env.state)
	engine.SetTokenLedger(env.ledger)
	engine.SetReceiptRegistry(env.receipts)
	engine.SetConverter(env.converter)
	engine.SetOwner(env.owner)
	engine.SetCollector(env.collector)
	engine.SetBlockHeight(10)
	engine.SetClock(func() time.Time { return time.Unix(env.now, 0) })
	env.engine = engine
	return env
}

func (env *testEnv) advance(secs int64) { env.now += secs }

func (env *testEnv) fund(addr crypto.Address, token string, amount int64) {
	env.ledger.Mint(token, addr, big.NewInt(amount))
}

// registerTestService installs a catalog entry priced at one millionth of a
// pool unit per unit amount per second with a 10% protocol fee.
func (env *testEnv) registerTestService(t *testing.T, gcFee int64) uint16 {
	t.Helper()
	index, err := env.engine.RegisterService(env.owner, Service{
		Name:          "compute-shard",
		Symbol:        "CSHD",
		BaseRate:      big.NewRat(1, 1_000_000),
		ServiceFeeBps: 1_000,
		MinDuration:   60,
		MaxDuration:   30 * 86_400,
		MinGCFee:      big.NewInt(gcFee),
	})
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	return index
}

// seedLiquidity deposits amount from a dedicated provider created one block in
// the past so the flash guard does not interfere with tests.
func (env *testEnv) seedLiquidity(t *testing.T, amount int64) (crypto.Address, uint64) {
	t.Helper()
	provider := makeAddress(crypto.RentPrefix, 0x10)
	env.fund(provider, "RNT", amount)
	env.engine.SetBlockHeight(9)
	id, _, err := env.engine.AddLiquidity(provider, big.NewInt(amount))
	if err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	env.engine.SetBlockHeight(10)
	return provider, id
}
