package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	errUserNotFound  = "user not found"
	errAssetNotFound = "asset not found"
	errJobNotFound   = "job not found"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"

	errFailedCreateUserFmt = "failed to create user: %w"
	errFailedGetUserFmt    = "failed to get user: %w"

	errFailedCreateAssetFmt       = "failed to create asset: %w"
	errFailedGetAssetFmt          = "failed to get asset: %w"
	errFailedListAssetsFmt        = "failed to list assets: %w"
	errFailedScanAssetFmt         = "failed to scan asset: %w"
	errFailedUpdateAssetFmt       = "failed to update asset: %w"
	errFailedDeleteAssetFmt       = "failed to delete asset: %w"
	errFailedUpdateAssetMediaFmt  = "failed to update asset media metadata: %w"
	errFailedUpdateVisibilityFmt  = "failed to update visibility: %w"

	errFailedCreateJobFmt    = "failed to create job: %w"
	errFailedGetJobFmt       = "failed to get job: %w"
	errFailedListJobsFmt     = "failed to list jobs: %w"
	errFailedScanJobFmt      = "failed to scan job: %w"
	errFailedUpdateJobFmt    = "failed to update job: %w"
	errFailedDeleteJobFmt    = "failed to delete job: %w"
)

func errFailedParseDatabaseConfig(err error) error {
	return fmt.Errorf(errFailedParseDatabaseConfigFmt, err)
}

func errFailedCreateConnectionPool(err error) error {
	return fmt.Errorf(errFailedCreateConnectionPoolFmt, err)
}

func errFailedPingDatabase(err error) error {
	return fmt.Errorf(errFailedPingDatabaseFmt, err)
}

func errFailedCreateUser(err error) error { return fmt.Errorf(errFailedCreateUserFmt, err) }
func errFailedGetUser(err error) error    { return fmt.Errorf(errFailedGetUserFmt, err) }

func errFailedCreateAsset(err error) error      { return fmt.Errorf(errFailedCreateAssetFmt, err) }
func errFailedGetAsset(err error) error         { return fmt.Errorf(errFailedGetAssetFmt, err) }
func errFailedListAssets(err error) error       { return fmt.Errorf(errFailedListAssetsFmt, err) }
func errFailedScanAsset(err error) error        { return fmt.Errorf(errFailedScanAssetFmt, err) }
func errFailedUpdateAsset(err error) error      { return fmt.Errorf(errFailedUpdateAssetFmt, err) }
func errFailedDeleteAsset(err error) error      { return fmt.Errorf(errFailedDeleteAssetFmt, err) }
func errFailedUpdateAssetMedia(err error) error { return fmt.Errorf(errFailedUpdateAssetMediaFmt, err) }
func errFailedUpdateVisibility(err error) error { return fmt.Errorf(errFailedUpdateVisibilityFmt, err) }

func errFailedCreateJob(err error) error { return fmt.Errorf(errFailedCreateJobFmt, err) }
func errFailedGetJob(err error) error    { return fmt.Errorf(errFailedGetJobFmt, err) }
func errFailedListJobs(err error) error  { return fmt.Errorf(errFailedListJobsFmt, err) }
func errFailedScanJob(err error) error   { return fmt.Errorf(errFailedScanJobFmt, err) }
func errFailedUpdateJob(err error) error { return fmt.Errorf(errFailedUpdateJobFmt, err) }
func errFailedDeleteJob(err error) error { return fmt.Errorf(errFailedDeleteJobFmt, err) }
