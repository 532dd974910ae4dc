// Package knowledge builds and serves immutable knowledge snapshots.
//
// A snapshot is assembled once from authored content, indexed for O(1)
// lookups, then published wholesale. Readers never observe a partially
// built snapshot and a failed rebuild never disturbs the one being served.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/clinsafe-server/internal/domain"
)

// pairKey is an order-normalized drug pair, a <= b.
type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x <= y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

type nameEntry struct {
	name string
	id   string
}

// Snapshot is an immutable, fully indexed view of the clinical knowledge
// base. It implements domain.KnowledgeStore.
type Snapshot struct {
	concepts          map[string]*domain.Concept
	drugExact         map[string]string
	diagnosisExact    map[string]string
	drugNames         []nameEntry
	interactions      map[pairKey]*domain.InteractionFact
	contraindications map[string]*domain.ContraindicationFact
	ingredients       map[string][]string
	conditionKeywords []domain.ConditionKeyword
	pairKeywords      []domain.PairKeyword
	version           string
}

var _ domain.KnowledgeStore = (*Snapshot)(nil)

// BuildSnapshot validates authored content and assembles the lookup indexes.
// Referential defects fail the whole build: serving a partially consistent
// knowledge base is worse than keeping the previous one.
func BuildSnapshot(set *domain.KnowledgeSet) (*Snapshot, error) {
	s := &Snapshot{
		concepts:          make(map[string]*domain.Concept, len(set.Concepts)),
		drugExact:         make(map[string]string),
		diagnosisExact:    make(map[string]string),
		interactions:      make(map[pairKey]*domain.InteractionFact, len(set.Interactions)),
		contraindications: make(map[string]*domain.ContraindicationFact, len(set.Contraindications)),
		ingredients:       make(map[string][]string),
	}

	for i := range set.Concepts {
		c := set.Concepts[i]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.concepts[c.ID]; dup {
			return nil, fmt.Errorf("duplicate concept id %s", c.ID)
		}
		s.concepts[c.ID] = &c

		// Inactive concepts stay resolvable by id but never by name.
		if !c.Active {
			continue
		}
		folded := Fold(c.DisplayName)
		switch c.Kind {
		case domain.KindDrug:
			if other, dup := s.drugExact[folded]; dup {
				return nil, fmt.Errorf("drug name %q maps to both %s and %s", folded, other, c.ID)
			}
			s.drugExact[folded] = c.ID
			s.drugNames = append(s.drugNames, nameEntry{name: folded, id: c.ID})
		case domain.KindDiagnosis:
			if other, dup := s.diagnosisExact[folded]; dup {
				return nil, fmt.Errorf("diagnosis name %q maps to both %s and %s", folded, other, c.ID)
			}
			s.diagnosisExact[folded] = c.ID
		}
	}

	sort.Slice(s.drugNames, func(i, j int) bool {
		if s.drugNames[i].name != s.drugNames[j].name {
			return s.drugNames[i].name < s.drugNames[j].name
		}
		return s.drugNames[i].id < s.drugNames[j].id
	})

	for i := range set.Interactions {
		f := set.Interactions[i]
		if !f.Severity.IsValid() {
			return nil, fmt.Errorf("interaction %s/%s: %w", f.DrugA, f.DrugB, domain.ErrInvalidSeverity)
		}
		if err := s.requireConcept(f.DrugA, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("interaction: %w", err)
		}
		if err := s.requireConcept(f.DrugB, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("interaction: %w", err)
		}
		s.interactions[newPairKey(f.DrugA, f.DrugB)] = &f
	}

	for i := range set.Contraindications {
		f := set.Contraindications[i]
		if !f.Severity.IsValid() {
			return nil, fmt.Errorf("contraindication %s/%s: %w", f.DrugID, f.DiagnosisID, domain.ErrInvalidSeverity)
		}
		if err := s.requireConcept(f.DrugID, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("contraindication: %w", err)
		}
		if err := s.requireConcept(f.DiagnosisID, domain.KindDiagnosis); err != nil {
			return nil, fmt.Errorf("contraindication: %w", err)
		}
		s.contraindications[contraKey(f.DrugID, f.DiagnosisID)] = &f
	}

	for _, link := range set.IngredientLinks {
		if err := s.requireConcept(link.DrugID, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("ingredient link: %w", err)
		}
		if err := s.requireConcept(link.IngredientID, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("ingredient link: %w", err)
		}
		s.ingredients[link.DrugID] = append(s.ingredients[link.DrugID], link.IngredientID)
	}
	for _, ids := range s.ingredients {
		sort.Strings(ids)
	}

	for _, kw := range set.ConditionKeywords {
		if err := s.requireConcept(kw.ConceptID, domain.KindDiagnosis); err != nil {
			return nil, fmt.Errorf("condition keyword %q: %w", kw.Keyword, err)
		}
		s.conditionKeywords = append(s.conditionKeywords, domain.ConditionKeyword{
			Keyword:   Fold(kw.Keyword),
			ConceptID: kw.ConceptID,
		})
	}
	sort.Slice(s.conditionKeywords, func(i, j int) bool {
		if s.conditionKeywords[i].Keyword != s.conditionKeywords[j].Keyword {
			return s.conditionKeywords[i].Keyword < s.conditionKeywords[j].Keyword
		}
		return s.conditionKeywords[i].ConceptID < s.conditionKeywords[j].ConceptID
	})

	for _, kw := range set.PairKeywords {
		if err := s.requireConcept(kw.DrugID, domain.KindDrug); err != nil {
			return nil, fmt.Errorf("pair keyword %q: %w", kw.Keyword, err)
		}
		s.pairKeywords = append(s.pairKeywords, domain.PairKeyword{
			Keyword: Fold(kw.Keyword),
			DrugID:  kw.DrugID,
		})
	}
	sort.Slice(s.pairKeywords, func(i, j int) bool {
		if s.pairKeywords[i].Keyword != s.pairKeywords[j].Keyword {
			return s.pairKeywords[i].Keyword < s.pairKeywords[j].Keyword
		}
		return s.pairKeywords[i].DrugID < s.pairKeywords[j].DrugID
	})

	s.version = s.fingerprint()
	return s, nil
}

func (s *Snapshot) requireConcept(id string, kind domain.ConceptKind) error {
	c, ok := s.concepts[id]
	if !ok {
		return fmt.Errorf("unknown concept %s: %w", id, domain.ErrNotFound)
	}
	if c.Kind != kind {
		return fmt.Errorf("concept %s is %s, expected %s", id, c.Kind, kind)
	}
	return nil
}

func contraKey(drugID, diagnosisID string) string {
	return drugID + "\x00" + diagnosisID
}

// fingerprint hashes a deterministic serialization of the snapshot content.
// Identical content yields an identical version regardless of load order.
func (s *Snapshot) fingerprint() string {
	h := sha256.New()

	ids := make([]string, 0, len(s.concepts))
	for id := range s.concepts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := s.concepts[id]
		fmt.Fprintf(h, "c|%s|%s|%s|%t\n", c.ID, c.DisplayName, c.Kind, c.Active)
		for _, ing := range s.ingredients[id] {
			fmt.Fprintf(h, "g|%s|%s\n", id, ing)
		}
	}

	pairs := make([]pairKey, 0, len(s.interactions))
	for k := range s.interactions {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	for _, k := range pairs {
		f := s.interactions[k]
		fmt.Fprintf(h, "i|%s|%s|%s|%s\n", k.a, k.b, f.Severity, f.Description)
	}

	contras := make([]string, 0, len(s.contraindications))
	for k := range s.contraindications {
		contras = append(contras, k)
	}
	sort.Strings(contras)
	for _, k := range contras {
		f := s.contraindications[k]
		fmt.Fprintf(h, "x|%s|%s|%s|%s\n", f.DrugID, f.DiagnosisID, f.Severity, f.Reason)
	}

	for _, kw := range s.conditionKeywords {
		fmt.Fprintf(h, "k|%s|%s\n", kw.Keyword, kw.ConceptID)
	}
	for _, kw := range s.pairKeywords {
		fmt.Fprintf(h, "p|%s|%s\n", kw.Keyword, kw.DrugID)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ResolveDrug matches captured medication text against active drugs: exact
// fold match first, then a substring pass returning the single best
// candidate. Candidate ranking is deterministic so identical inputs resolve
// identically across processes.
func (s *Snapshot) ResolveDrug(text string) (*domain.Concept, bool) {
	q := Fold(text)
	if q == "" {
		return nil, false
	}
	if id, ok := s.drugExact[q]; ok {
		return s.concepts[id], true
	}

	best := -1
	bestDelta := 0
	for i, e := range s.drugNames {
		if !strings.Contains(e.name, q) && !strings.Contains(q, e.name) {
			continue
		}
		delta := len(e.name) - len(q)
		if delta < 0 {
			delta = -delta
		}
		// drugNames is name-then-id sorted, so first-wins on equal delta
		// makes the ranking total.
		if best == -1 || delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	if best == -1 {
		return nil, false
	}
	return s.concepts[s.drugNames[best].id], true
}

// ResolveDiagnosis matches captured diagnosis text exactly. Fuzzy matching
// of diagnoses risks miscoding a condition, so anything short of an exact
// fold match stays unresolved.
func (s *Snapshot) ResolveDiagnosis(text string) (*domain.Concept, bool) {
	q := Fold(text)
	if q == "" {
		return nil, false
	}
	id, ok := s.diagnosisExact[q]
	if !ok {
		return nil, false
	}
	return s.concepts[id], true
}

// ConceptByID resolves a stable code, including inactive concepts.
func (s *Snapshot) ConceptByID(id string) (*domain.Concept, bool) {
	c, ok := s.concepts[id]
	return c, ok
}

// FindInteraction looks up the unordered pair.
func (s *Snapshot) FindInteraction(drugA, drugB string) (*domain.InteractionFact, bool) {
	f, ok := s.interactions[newPairKey(drugA, drugB)]
	return f, ok
}

// FindContraindication looks up the drug-given-diagnosis fact.
func (s *Snapshot) FindContraindication(drugID, diagnosisID string) (*domain.ContraindicationFact, bool) {
	f, ok := s.contraindications[contraKey(drugID, diagnosisID)]
	return f, ok
}

// Ingredients returns the active-ingredient ids of a drug, sorted.
func (s *Snapshot) Ingredients(drugID string) []string {
	return s.ingredients[drugID]
}

// ConditionKeywords returns the folded keyword-to-diagnosis table.
func (s *Snapshot) ConditionKeywords() []domain.ConditionKeyword {
	return s.conditionKeywords
}

// PairKeywords returns the folded dangerous-pair keyword table.
func (s *Snapshot) PairKeywords() []domain.PairKeyword {
	return s.pairKeywords
}

// Version returns the content fingerprint.
func (s *Snapshot) Version() string {
	return s.version
}

// ConceptCount reports the number of concepts, for health reporting.
func (s *Snapshot) ConceptCount() int {
	return len(s.concepts)
}
