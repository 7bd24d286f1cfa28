// Package repo implements the typed repositories (§4.1) over the
// single-table Store: one file per entity, each exposing create/get/
// update/delete/list_by_<index> the way §4.1's public contract requires.
package repo

import (
	"fmt"
	"time"
)

// padTimestamp renders t as a fixed-width, lexicographically and
// numerically sortable decimal string, used for every GSI sort key so
// ZRANGEBYSCORE-style backends and naive string comparison agree.
func padTimestamp(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func padUnix(sec int64) string {
	return fmt.Sprintf("%020d", sec)
}

func userPK(userID string) string { return "USR#" + userID }
func planPK(planID string) string { return "PLAN#" + planID }

func problemPK(platform, problemID string) string { return "PROB#" + platform + "#" + problemID }

func problemStatusGSI(completed bool) string {
	if completed {
		return "PROB#COMPLETED"
	}
	return "PROB#DRAFT"
}

func scriptJobPK(jobID string) string     { return "SGJOB#" + jobID }
func scriptJobStatusGSI(status string) string { return "SGJOB#STATUS#" + status }

func extractionJobPK(jobID string) string     { return "PEJOB#" + jobID }
func extractionJobStatusGSI(status string) string { return "PEJOB#STATUS#" + status }

func jobProgressPK(kind, jobID string) string { return "JOB#" + kind + "#" + jobID }
func progressSK(t time.Time) string           { return "PROG#" + padTimestamp(t) }

func historyPK(email, platform, problemNumber string) string {
	return "EMAIL#" + email + "#SHIST#" + platform + "#" + problemNumber
}
func historySK(unixMs int64) string { return fmt.Sprintf("HIST#%020d", unixMs) }

const publicHistoryGSI1PK = "PUBLIC#HIST"

func usageLogPK(userID, yyyymmdd string) string { return "USR#" + userID + "#ULOG#" + yyyymmdd }
func usageLogSK(unixTS int64, action string) string {
	return fmt.Sprintf("ULOG#%020d#%s", unixTS, action)
}
