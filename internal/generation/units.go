package generation

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/bespoke/internal/domain"
)

// drawBuffer lets units be drawn while their card count is at most this far
// above the average of the units still needing cards.
const drawBuffer = 4

// UnitProducer hands out vocabulary units that still need cards, lowest
// tier first, while keeping the number of cards per unit balanced.
// It is not safe for concurrent use.
type UnitProducer struct {
	cardsPerUnit int
	cardCount    map[string]int
	fittingCount map[string]int
	remaining    map[domain.Difficulty][]string
	pools        map[domain.Difficulty][]string
	done         bool
}

// NewUnitProducer creates a producer over the per-tier vocabulary. A unit
// is complete once it has cardsPerUnit fitting cards.
func NewUnitProducer(vocabulary map[domain.Difficulty][]string, cardsPerUnit int) *UnitProducer {
	remaining := make(map[domain.Difficulty][]string, len(vocabulary))
	for tier, units := range vocabulary {
		remaining[tier] = slices.Clone(units)
	}
	return &UnitProducer{
		cardsPerUnit: cardsPerUnit,
		cardCount:    make(map[string]int),
		fittingCount: make(map[string]int),
		remaining:    remaining,
	}
}

// Draw returns up to count units of the lowest tier that has units left in
// the current round, and that tier. It must not be called once Done.
func (p *UnitProducer) Draw(count int) ([]string, domain.Difficulty) {
	if p.pools == nil {
		p.refill()
	}

	var (
		units []string
		tier  domain.Difficulty
	)
	for _, d := range domain.AllDifficulties {
		pool := p.pools[d]
		if len(pool) == 0 {
			continue
		}
		n := min(count, len(pool))
		units, tier = pool[:n:n], d
		p.pools[d] = pool[n:]
		break
	}

	empty := true
	for _, pool := range p.pools {
		if len(pool) > 0 {
			empty = false
			break
		}
	}
	if empty {
		p.refill()
	}
	return units, tier
}

// Register records a card exercising the unit. A card is fitting for a
// unit when the unit belongs to the card's highest tier.
func (p *UnitProducer) Register(unit string, fitting bool) {
	p.cardCount[unit]++
	if fitting {
		p.fittingCount[unit]++
	}
}

// Done reports whether every unit has enough fitting cards.
func (p *UnitProducer) Done() bool {
	if p.pools == nil {
		p.refill()
	}
	return p.done
}

// Pending returns the number of units still needing cards as of the last refill.
func (p *UnitProducer) Pending() int {
	n := 0
	for _, units := range p.remaining {
		n += len(units)
	}
	return n
}

func (p *UnitProducer) refill() {
	size, total := 0, 0
	for _, d := range domain.AllDifficulties {
		var remaining []string
		for _, unit := range p.remaining[d] {
			if p.fittingCount[unit] < p.cardsPerUnit {
				remaining = append(remaining, unit)
				size++
				total += p.cardCount[unit]
			}
		}
		p.remaining[d] = remaining
	}

	p.pools = make(map[domain.Difficulty][]string, len(domain.AllDifficulties))
	p.done = size == 0
	if p.done {
		return
	}

	average := float64(total) / float64(size)
	for _, d := range domain.AllDifficulties {
		var pool []string
		for _, unit := range p.remaining[d] {
			if float64(p.cardCount[unit]) < average+drawBuffer {
				pool = append(pool, unit)
			}
		}
		p.pools[d] = pool
	}
}

// UnitTagsBuilder accumulates the unit tags of a sentence over repeated
// tagging calls.
type UnitTagsBuilder struct {
	Sentence string
	Tags     map[string]string
	Hint     []string

	noProgress int
}

// doneAfter is the number of tagging rounds without new tags after which
// the tags are considered complete.
const doneAfter = 1

// NewUnitTagsBuilder creates a builder for the sentence with an initial hint.
func NewUnitTagsBuilder(sentence string, hint []string) *UnitTagsBuilder {
	return &UnitTagsBuilder{
		Sentence: sentence,
		Tags:     map[string]string{},
		Hint:     slices.Clone(hint),
	}
}

// ExtendHint adds every vocabulary entry occurring literally in the
// sentence to the hint.
func (b *UnitTagsBuilder) ExtendHint(vocabulary []string) {
	for _, unit := range vocabulary {
		if strings.Contains(b.Sentence, unit) && !slices.Contains(b.Hint, unit) {
			b.Hint = append(b.Hint, unit)
		}
	}
}

// AddFiltered merges new tags with the current ones. Longer words win, a
// word must still be unclaimed in the sentence, the item must be known
// vocabulary, and every item is used at most once.
func (b *UnitTagsBuilder) AddFiltered(tags []Tag, vocabulary map[string]struct{}) {
	previous := len(b.Tags)

	all := slices.Clone(tags)
	for _, word := range slices.Sorted(maps.Keys(b.Tags)) {
		all = append(all, Tag{Word: word, Item: b.Tags[word]})
	}
	sort.SliceStable(all, func(i, j int) bool {
		wi, wj := utf8.RuneCountInString(all[i].Word), utf8.RuneCountInString(all[j].Word)
		if wi != wj {
			return wi > wj
		}
		return utf8.RuneCountInString(all[i].Item) > utf8.RuneCountInString(all[j].Item)
	})

	rest := b.Sentence
	used := make(map[string]struct{})
	filtered := make(map[string]string)
	for _, t := range all {
		if t.Word == "" || !strings.Contains(rest, t.Word) {
			continue
		}
		if _, ok := vocabulary[t.Item]; !ok {
			continue
		}
		if _, ok := used[t.Item]; ok {
			continue
		}
		rest = strings.Replace(rest, t.Word, "", 1)
		filtered[t.Word] = t.Item
		used[t.Item] = struct{}{}
	}
	b.Tags = filtered

	if len(b.Tags) <= previous {
		b.noProgress++
	}
}

// Done reports whether tagging stopped making progress.
func (b *UnitTagsBuilder) Done() bool {
	return b.noProgress >= doneAfter
}
