package proposals

// PollMergeabilityWithBase lets tests shrink the backoff base.
var PollMergeabilityWithBase = pollMergeability
