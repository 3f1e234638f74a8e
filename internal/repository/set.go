package repository

import "sort"

// Set collects references without duplicates while remembering insertion order.
type Set struct {
	seen       map[string]struct{}
	references []Reference
}

// NewSet constructs an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts the reference unless an equal one is present and reports whether it was added.
func (set *Set) Add(reference Reference) bool {
	referenceKey := reference.Key()
	if _, exists := set.seen[referenceKey]; exists {
		return false
	}
	set.seen[referenceKey] = struct{}{}
	set.references = append(set.references, reference)
	return true
}

// Contains reports whether an equal reference has been added.
func (set *Set) Contains(reference Reference) bool {
	_, exists := set.seen[reference.Key()]
	return exists
}

// Len returns the number of distinct references.
func (set *Set) Len() int {
	return len(set.references)
}

// References returns a copy of the references in insertion order.
func (set *Set) References() []Reference {
	duplicated := make([]Reference, len(set.references))
	copy(duplicated, set.references)
	return duplicated
}

// Sorted returns a copy of the references ordered by key.
func (set *Set) Sorted() []Reference {
	sortedReferences := set.References()
	SortReferences(sortedReferences)
	return sortedReferences
}

// SortReferences orders references in place by case-insensitive key.
func SortReferences(references []Reference) {
	sort.SliceStable(references, func(leftIndex int, rightIndex int) bool {
		return references[leftIndex].Less(references[rightIndex])
	})
}
