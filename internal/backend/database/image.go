package database

// Image links one report to the storage location of its uploaded file.
type Image struct {
	ImageID    string `db:"image_id" json:"image_id"`
	ReportID   int64  `db:"report_id" json:"report_id"`
	ImageURL   string `db:"image_url" json:"image_url"`
	UploadedAt string `db:"uploaded_at" json:"uploaded_at"`
}
