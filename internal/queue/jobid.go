package queue

import "github.com/google/uuid"

// jobNamespace scopes similar-listings job ids.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://marketplace-pricing/similar-listings"))

// JobID derives the job id for a (listing, query hash) pair. Equal inputs
// always produce the same id, which is what lets the queue collapse
// duplicate enqueues.
func JobID(listingID, queryHash string) string {
	return uuid.NewSHA1(jobNamespace, []byte(listingID+":"+queryHash)).String()
}
