// Package etl runs the scan phase: fetch the top players and their battle
// logs, dedup and filter to ranked one-on-one matches, and fold every valid
// participant deck into an Aggregator.
package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pable/go-cr-meta/internal/aggregator"
	"github.com/pable/go-cr-meta/internal/archetype"
	"github.com/pable/go-cr-meta/internal/battle"
	"github.com/pable/go-cr-meta/internal/deck"
	"github.com/pable/go-cr-meta/internal/model"
)

// minRankingFetch is the smallest leaderboard page requested, even for a small top-N.
const minRankingFetch = 20

// RankingSource returns the leaderboard in rank order.
type RankingSource interface {
	TopPlayers(ctx context.Context, limit int) ([]model.Player, error)
}

// BattleLogSource returns a player's recent battles.
type BattleLogSource interface {
	BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error)
}

// Options configures a scan.
type Options struct {
	TopN        int
	RankedModes []int64
}

// Stats summarizes a scan. The first five fields are the run report.
type Stats struct {
	PlayersFetched int
	EntriesScanned int
	DedupedMatches int
	UniqueDecks    int
	PlayerDeckRows int

	Unranked            int
	Duplicates          int
	NotOneVsOne         int
	SkippedParticipants int
	Overridden          int
}

// Result is the outcome of a scan, ready for snapshot assembly.
type Result struct {
	Players    []model.Player
	Aggregator *aggregator.Aggregator
	Stats      Stats
}

// Pipeline wires the collaborators of one run.
type Pipeline struct {
	ranking    RankingSource
	battles    BattleLogSource
	names      deck.NameResolver
	classifier *archetype.Classifier
	filter     *battle.Filter
	opts       Options
	log        *zap.Logger
}

// New returns a pipeline. log may be nil.
func New(ranking RankingSource, battles BattleLogSource, names deck.NameResolver,
	classifier *archetype.Classifier, opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		ranking:    ranking,
		battles:    battles,
		names:      names,
		classifier: classifier,
		filter:     battle.NewFilter(opts.RankedModes),
		opts:       opts,
		log:        log,
	}
}

// Run fetches the top players and scans their battle logs. Any source error
// aborts the scan.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	players, err := p.fetchPlayers(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("fetched top players", zap.Int("players", len(players)))

	s := NewScan(players, p.names, p.classifier, p.filter, p.log)
	for _, pl := range players {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logs, err := p.battles.BattleLog(ctx, pl.Tag)
		if err != nil {
			return nil, fmt.Errorf("battle log %s: %w", pl.Tag, err)
		}
		p.log.Debug("scanning battle log", zap.String("tag", pl.Tag), zap.Int("entries", len(logs)))
		s.AddLog(logs)
	}
	return s.Result(), nil
}

func (p *Pipeline) fetchPlayers(ctx context.Context) ([]model.Player, error) {
	if p.opts.TopN <= 0 {
		return nil, errors.New("top-n must be positive")
	}
	raw, err := p.ranking.TopPlayers(ctx, max(p.opts.TopN, minRankingFetch))
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	if len(raw) > p.opts.TopN {
		raw = raw[:p.opts.TopN]
	}
	return NormalizePlayers(raw), nil
}

// NormalizePlayers normalizes tags, drops entries without one, trims names
// and fills a missing rank with the list position.
func NormalizePlayers(raw []model.Player) []model.Player {
	out := make([]model.Player, 0, len(raw))
	for i, pl := range raw {
		tag := battle.NormalizeTag(pl.Tag)
		if tag == "" {
			continue
		}
		rank := pl.Rank
		if rank == 0 {
			rank = i + 1
		}
		out = append(out, model.Player{
			Tag:      tag,
			Name:     strings.TrimSpace(pl.Name),
			Trophies: pl.Trophies,
			Rank:     rank,
		})
	}
	return out
}

// Scan holds the per-run state: the seen-match set and the aggregator.
type Scan struct {
	players    []model.Player
	names      deck.NameResolver
	classifier *archetype.Classifier
	filter     *battle.Filter
	dedup      *battle.Deduper
	agg        *aggregator.Aggregator
	stats      Stats
	log        *zap.Logger
}

// NewScan starts a scan for the given top-player cohort.
func NewScan(players []model.Player, names deck.NameResolver, classifier *archetype.Classifier,
	filter *battle.Filter, log *zap.Logger) *Scan {
	if log == nil {
		log = zap.NewNop()
	}
	tags := make([]string, len(players))
	for i, pl := range players {
		tags[i] = pl.Tag
	}
	return &Scan{
		players:    players,
		names:      names,
		classifier: classifier,
		filter:     filter,
		dedup:      battle.NewDeduper(),
		agg:        aggregator.New(tags),
		stats:      Stats{PlayersFetched: len(players)},
		log:        log,
	}
}

// AddLog processes one player's battle log.
func (s *Scan) AddLog(battles []model.RawBattle) {
	s.stats.EntriesScanned += len(battles)
	for i := range battles {
		s.AddBattle(&battles[i])
	}
}

// AddBattle processes one battle: ranked filter, dedup gate, shape check,
// then both participants.
func (s *Scan) AddBattle(b *model.RawBattle) {
	if !s.filter.IsRanked(b) {
		s.stats.Unranked++
		return
	}
	if !s.dedup.FirstSeen(battle.MatchHash(b)) {
		s.stats.Duplicates++
		return
	}
	s.stats.DedupedMatches++

	if !battle.IsOneVsOne(b) {
		s.stats.NotOneVsOne++
		return
	}

	team, opp := b.Team[0], b.Opponent[0]
	s.addParticipant(team, battle.OutcomeFor(team.Crowns, opp.Crowns))
	s.addParticipant(opp, battle.OutcomeFor(opp.Crowns, team.Crowns))
}

func (s *Scan) addParticipant(p model.RawParticipant, outcome battle.Outcome) {
	tag := battle.NormalizeTag(p.Tag)
	if tag == "" {
		s.stats.SkippedParticipants++
		return
	}
	obs, err := deck.Extract(p, s.names)
	if err != nil {
		s.stats.SkippedParticipants++
		s.log.Debug("skipping participant", zap.String("tag", tag), zap.Error(err))
		return
	}

	d := model.Deck{Hash: deck.Hash(obs), Cards: obs}
	names := make([]string, 0, len(obs))
	for _, o := range obs {
		if o.CardName != "" {
			names = append(names, o.CardName)
		}
	}
	d.Type = s.classifier.DeckType(d.Hash, names)
	if s.classifier.Overridden(d.Hash) {
		s.stats.Overridden++
	}

	s.agg.Observe(tag, d, outcome == battle.Win)
}

// Result finalizes the scan statistics.
func (s *Scan) Result() *Result {
	st := s.stats
	st.UniqueDecks = len(s.agg.Decks())
	st.PlayerDeckRows = len(s.agg.PlayerDecks())
	return &Result{Players: s.players, Aggregator: s.agg, Stats: st}
}
