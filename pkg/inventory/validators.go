package inventory

type ReconcilePayload struct {
	DryRun bool `json:"dry_run"`
}
