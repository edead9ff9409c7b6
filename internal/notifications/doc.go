// Package notifications sends transactional email to submitters. Delivery is
// fire-and-forget from the submission flow's point of view: a failed send is
// logged by the caller and never rolls back a recorded submission.
package notifications
