package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"

	"rfqsettle/config"
	"rfqsettle/core/epoch"
	"rfqsettle/core/events"
	"rfqsettle/core/genesis"
	"rfqsettle/core/runtime"
	"rfqsettle/core/state"
	"rfqsettle/native/rfq"
	"rfqsettle/native/system"
	"rfqsettle/native/token"
	"rfqsettle/observability"
	"rfqsettle/services/indexer"
	"rfqsettle/storage"
)

// simulator owns the ledger, the programs and the indexer of one run.
type simulator struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      storage.Database
	st      *state.Manager
	exec    *runtime.Executor
	engine  *rfq.Engine
	dir     *genesis.Directory
	store   *indexer.Storage
	sink    *indexer.Sink
	builder *builder
	limiter *rate.Limiter

	epochs      epoch.Config
	genesisRoot []byte
	clock       time.Time
}

func newSimulator(cfg *config.Config, spec *genesis.GenesisSpec, logger *slog.Logger) (*simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params, err := cfg.RFQ.Params()
	if err != nil {
		return nil, err
	}
	standard := token.NewProgram(params.TokenProgram, false, params.NativeMint, params.RentExemptReserve)
	extended := token.NewProgram(params.Token2022Program, true, params.NativeMint, params.RentExemptReserve)
	engine, err := rfq.NewEngine(params, standard, extended)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	epochs := epoch.Config{Genesis: spec.GenesisTimestamp(), Length: time.Duration(cfg.EpochSeconds) * time.Second}
	if err := epochs.Validate(); err != nil {
		db.Close()
		return nil, err
	}
	sim := &simulator{cfg: cfg, logger: logger, db: db, engine: engine, epochs: epochs}
	if err := sim.init(spec, params, standard, extended); err != nil {
		sim.Close()
		return nil, err
	}
	return sim, nil
}

func (s *simulator) init(spec *genesis.GenesisSpec, params rfq.Params, standard, extended *token.Program) error {
	st, err := state.NewManager(s.db)
	if err != nil {
		return err
	}
	s.st = st

	opts := genesis.Options{
		NativeMint:        params.NativeMint,
		TokenProgram:      params.TokenProgram,
		Token2022Program:  params.Token2022Program,
		RentExemptReserve: params.RentExemptReserve,
		Aliases:           map[string]solana.PublicKey{"delegated": s.engine.DelegatedAddress()},
	}
	if len(st.Root()) == 0 {
		s.dir, s.genesisRoot, err = genesis.BuildGenesisFromSpec(spec, st, opts)
		if err != nil {
			return err
		}
		s.logger.Info("genesis applied", "root", hex.EncodeToString(s.genesisRoot))
	} else {
		s.dir, err = genesis.ResolveDirectory(spec, opts)
		if err != nil {
			return err
		}
		s.genesisRoot = st.Root()
		s.logger.Info("reopened ledger", "root", hex.EncodeToString(s.genesisRoot))
	}

	dsn := s.cfg.IndexerDSN()
	if !indexer.IsPostgres(dsn) {
		if dsn, err = indexer.FileDSN(dsn); err != nil {
			return err
		}
	}
	if s.store, err = indexer.Open(dsn); err != nil {
		return err
	}
	s.sink = indexer.NewSink(s.store, s.logger)

	s.clock = s.epochs.Genesis
	s.exec = runtime.NewExecutor(st)
	s.exec.Register(system.Program{}, standard, extended, s.engine)
	s.exec.SetEmitter(events.Multi{s.sink, observability.EventCounter{}, rfq.NewSettlementObserver(s.logger)})
	s.exec.SetNowFunc(func() time.Time { return s.clock })
	s.exec.SetEpochFunc(s.epochs.At)
	s.exec.SetLogger(s.logger)

	s.builder = &builder{
		dir:    s.dir,
		engine: s.engine,
		programs: map[solana.PublicKey]*token.Program{
			standard.ID(): standard,
			extended.ID(): extended,
		},
	}
	return nil
}

// SetPace limits replay to tps transactions per second. Zero or less removes
// the limit.
func (s *simulator) SetPace(tps float64) {
	if tps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(tps), 1)
}

// Run replays the scenario and returns the report. Transactions that fail
// are recorded; the run only stops on errors building a transaction.
func (s *simulator) Run(ctx context.Context, scenario *Scenario) (*Report, error) {
	if !scenario.start.IsZero() {
		s.clock = scenario.start
	}
	report := &Report{
		Scenario:         scenario.Name,
		Network:          s.cfg.NetworkName,
		ProgramID:        s.engine.ID().String(),
		DelegatedAddress: s.engine.DelegatedAddress().String(),
		GenesisRoot:      hex.EncodeToString(s.genesisRoot),
	}
	for i, spec := range scenario.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		s.clock = s.clock.Add(spec.Advance.Duration)
		name := spec.Name
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("tx-%d", i)
		}
		tx, err := s.builder.build(spec, s.clock)
		if err != nil {
			return nil, fmt.Errorf("transaction %q: %w", name, err)
		}

		entry := TxReport{Name: name, At: s.clock.UTC().Format(time.RFC3339), Epoch: s.epochs.At(s.clock)}
		receipt, execErr := s.exec.Execute(ctx, tx)
		entry.resolve(spec.ExpectError, execErr)
		if receipt != nil {
			entry.ID = receipt.ID
			entry.Root = hex.EncodeToString(receipt.Root)
			for _, evt := range receipt.Events {
				if rec, ok := evt.(rfq.SettlementRecord); ok {
					entry.Settlements = append(entry.Settlements, s.settlementReport(rec))
				}
			}
		}
		if entry.Mismatch {
			report.Mismatches++
			s.logger.Warn("unexpected outcome", "tx", name, "status", entry.Status, "error", entry.Error)
		}
		report.Transactions = append(report.Transactions, entry)
	}

	balances, err := s.balances()
	if err != nil {
		return nil, err
	}
	report.Balances = balances
	report.RunID = s.sink.RunID().String()
	stored, err := s.store.Records(ctx, indexer.Query{RunID: s.sink.RunID()})
	if err != nil {
		return nil, err
	}
	report.IndexedSettlements = len(stored)
	report.IndexerFailures = s.sink.Failed()
	return report, nil
}

func (s *simulator) settlementReport(rec rfq.SettlementRecord) SettlementReport {
	return SettlementReport{
		EventID:           rec.EventID,
		Maker:             s.dir.Name(rec.Maker),
		TakerMint:         s.dir.Name(rec.TakerMint),
		MakerMint:         s.dir.Name(rec.MakerMint),
		FilledTakerAmount: s.formatAsset(rec.TakerMint, rec.FilledTakerAmount),
		FilledMakerAmount: s.formatAsset(rec.MakerMint, rec.FilledMakerAmount),
	}
}

func (s *simulator) formatAsset(mint solana.PublicKey, amount uint64) string {
	if info, ok := s.dir.Mint(mint); ok {
		return genesis.FormatAmount(amount, info.Decimals)
	}
	return fmt.Sprintf("%d", amount)
}

func (s *simulator) balances() ([]BalanceReport, error) {
	out := make([]BalanceReport, 0)
	for _, name := range s.dir.Names() {
		addr, err := s.dir.Resolve(name)
		if err != nil {
			return nil, err
		}
		acc, ok, err := s.st.Account(addr)
		if err != nil {
			return nil, err
		}
		entry := BalanceReport{Name: name, Address: addr.String()}
		if ok {
			entry.Native = genesis.FormatAmount(acc.Lamports, genesis.NativeDecimals)
			if acc.Token != nil {
				entry.Asset = s.dir.Name(acc.Token.Mint)
				entry.Amount = s.formatAsset(acc.Token.Mint, acc.Token.Amount)
			}
		} else {
			entry.Native = "0"
			entry.Closed = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// Close releases the indexer and the ledger database.
func (s *simulator) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
