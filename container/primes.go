package container

// bucketPrimes is a fixed ladder of primes used to size hash-table bucket
// arrays: each step is roughly double the last, kept prime so that poor
// hash distributions don't alias badly against a power-of-two modulus.
// The ladder is part of the on-disk contract; producers and consumers
// must agree on it for bucket assignment to be reproducible.
var bucketPrimes = []uint64{
	17, 37, 79, 163, 331, 673, 1361, 2729, 5471, 10949,
	21911, 43853, 87719, 175447, 350899, 701819, 1403641, 2807303,
	5614657, 11229331, 22458671, 44917381, 89834777, 179669557,
	359339171, 718678369, 1437356741, 2147483647,
}

const maxBucketCount = uint64(1)<<31 - 1 // 2^31-1, same ceiling as the last table entry

// bucketCountFor returns the smallest prime in bucketPrimes strictly greater
// than n, saturating at maxBucketCount once n reaches or exceeds the table's
// range. Computed once at Dump time for HashMap, HashSet and the index of
// NestedHashMap.
func bucketCountFor(n uint64) uint64 {
	for _, p := range bucketPrimes {
		if p > n {
			return p
		}
	}
	return maxBucketCount
}
