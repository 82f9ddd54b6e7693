package validation

import "regexp"

// Account addresses use the Hedera shard.realm.num format (e.g. 0.0.12345).
var accountRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Transaction references: either a Hedera transaction id
// (0.0.x@seconds.nanos) or a 0x-prefixed hash.
var txHashRe = regexp.MustCompile(`^(0x[0-9a-fA-F]+|\d+\.\d+\.\d+@\d+\.\d+)$`)

func IsValidAddress(address string) bool {
	return accountRe.MatchString(address)
}

func IsValidTransactionHash(hash string) bool {
	return txHashRe.MatchString(hash)
}

// IsValidQualityGrade checks the 1-100 grading scale used on harvest reports.
func IsValidQualityGrade(grade int) bool {
	return grade >= 1 && grade <= 100
}

// IsPositiveAmount rejects zero and negative currency or yield values.
func IsPositiveAmount(amount int64) bool {
	return amount > 0
}
