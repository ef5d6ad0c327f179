package dataset

import (
	"github.com/starfys/pcapfeatures/capwork"
	"github.com/starfys/pcapfeatures/features"
)

// FlowData is one capture's final, normalized feature vector plus the
// manifest metadata needed to label it for training.
type FlowData struct {
	Class          capwork.WorkType
	URL            string
	IsFirstOfClass bool
	Features       features.NormalizedFlowFeatures
}

// tensor is FlowData serialized with the compact field names the output
// format uses: c, u, f, pl, iaf, iat.
type tensor struct {
	Class                          capwork.WorkType `json:"c"`
	URL                            string           `json:"u"`
	IsFirstOfClass                 bool             `json:"f"`
	PayloadLengthFreqBins          []float64        `json:"pl"`
	InterarrivalFreqFromClientBins []float64        `json:"iaf"`
	InterarrivalFreqToClientBins   []float64        `json:"iat"`
}

func (fd FlowData) toTensor() tensor {
	return tensor{
		Class:                          fd.Class,
		URL:                            fd.URL,
		IsFirstOfClass:                 fd.IsFirstOfClass,
		PayloadLengthFreqBins:          fd.Features.PayloadLengthFreqBins,
		InterarrivalFreqFromClientBins: fd.Features.InterarrivalFreqFromClientBins,
		InterarrivalFreqToClientBins:   fd.Features.InterarrivalFreqToClientBins,
	}
}
