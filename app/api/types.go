package api

import (
	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/job"
	"github.com/sponsorscout/jobengine/app/pipeline"
)

// Handler bundles the dependencies the HTTP endpoints need.
type Handler struct {
	coordinator *pipeline.Coordinator
	classifier  *classify.Classifier
	jobRepo     database.JobRepository
}

// ClassifyRequest is the body of POST /api/classify: ad-hoc analysis of a
// posting that may not be stored.
type ClassifyRequest struct {
	Title       string `json:"title" binding:"required"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// ReclassifyRequest is the body of POST /api/reclassify: re-run the
// classifier over stored listings.
type ReclassifyRequest struct {
	OnlyActive bool       `json:"only_active"`
	Source     job.Source `json:"source"`
	Limit      int        `json:"limit"`
}
