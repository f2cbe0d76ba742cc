package config

import "time"

// Version is set at build time via -ldflags.
var Version string

// Used so tests can generate fixed timestamps instead of relying on time.Now().
var Clock TimestampGenerator = RealTimestampGenerator{}

// TTL is the maximum time the Timeout Monitor will wait between pings before
// reclaiming a job's claim.
const TTL = 60 * time.Minute

// TimeoutMonitorInterval is how often the Timeout Monitor scans for stale claims.
const TimeoutMonitorInterval = 5 * time.Minute

// HealerInterval is how often the Video Healer runs its two-phase reconciliation.
const HealerInterval = 60 * time.Minute

// HealerJobWindow bounds how far back the Healer looks for completed jobs.
const HealerJobWindow = 1 * time.Hour

// HealerVideoRecordWindow bounds how recently a video record must have been created
// for the Healer to consider it eligible for repair.
const HealerVideoRecordWindow = 24 * time.Hour

// ListJobsLimit is the server-imposed cap on the number of unassigned jobs returned
// by a single list-jobs call.
const ListJobsLimit = 100

// StoreConnectTimeout bounds the Process Supervisor's background ping of the job store.
// The store is installed when the ping returns, whether or not it succeeded.
const StoreConnectTimeout = 5 * time.Second

// MaxStoreConnections bounds the Job Store Gateway's connection pool.
const MaxStoreConnections = 10
