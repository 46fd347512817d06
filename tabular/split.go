package tabular

// LongitudeSplit computes the three disjoint longitude index sets used to
// partition the data along the longitude axis of cardinality l:
//
//	training:   indices ≡ 0 (mod 2)  — every other longitude, ~50%
//	validation: indices ≡ 1 (mod 4)  — ~25%
//	testing:    indices ≡ 3 (mod 4)  — ~25%
//
// The strides are fixed: splitting by a spatial dimension keeps whole
// vertical columns and time series together within one subset, and for a
// longitude axis divisible by 4 (e.g. 180 points) yields an exact
// 50/25/25 partition. The three sets are pairwise disjoint and together
// cover every longitude index; when l is not a multiple of 4 only the
// proportions shift, nothing is left out.
func LongitudeSplit(l int) (training, validation, testing []int) {
	for i := 0; i < l; i += 2 {
		training = append(training, i)
	}
	for i := 1; i < l; i += 4 {
		validation = append(validation, i)
	}
	for i := 3; i < l; i += 4 {
		testing = append(testing, i)
	}
	return training, validation, testing
}
