// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"fmt"

	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// notifyFileUploaded builds the C13 emission for a new job attachment,
// addressed to whichever participant did not upload it.
func notifyFileUploaded(job *storage.Job, file *storage.JobFile) notify.Emission {
	recipient := job.Seller
	if file.Uploader == job.Seller {
		recipient = job.Buyer
	}
	return notify.Emission{
		Recipient: recipient,
		Event:     notify.EventFileUploaded,
		Title:     "New file uploaded",
		Body:      fmt.Sprintf("%s uploaded %s", file.Uploader, file.Filename),
		JobID:     job.ID,
		Data:      map[string]interface{}{"fileId": file.ID, "filename": file.Filename},
	}
}

// jobEventEmission builds the C13 emission for a job lifecycle transition,
// addressed to the counterparty of whoever triggered it.
func jobEventEmission(job *storage.Job, event, by, title, body string) notify.Emission {
	recipient := job.Seller
	if by == job.Seller {
		recipient = job.Buyer
	}
	return notify.Emission{
		Recipient: recipient,
		Event:     event,
		Title:     title,
		Body:      body,
		JobID:     job.ID,
		Data:      map[string]interface{}{"status": string(job.Status)},
	}
}
