package forgery

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ppiankov/legalscan/internal/model"
)

// pdfDate captures the YYYYMMDDHHMMSS part of a PDF date string
var pdfDate = regexp.MustCompile(`D:(\d{14})`)

// Metadata compares creation and modification timestamps and counts fonts
func (d *Detector) Metadata(meta model.PDFMetadata) CheckResult {
	res := CheckResult{Name: "metadata"}

	created := pdfDate.FindStringSubmatch(meta.CreationDate)
	modified := pdfDate.FindStringSubmatch(meta.ModDate)
	if created != nil && modified != nil {
		// Fixed-width digits compare correctly as strings
		if modified[1] < created[1] {
			res.Alerts = append(res.Alerts, alert(model.AlertMetadata, model.RiskHigh, msgModBeforeCreation))
		}

		createdYear, _ := strconv.Atoi(created[1][:4])
		modYear, _ := strconv.Atoi(modified[1][:4])
		gap := modYear - createdYear
		if gap < 0 {
			gap = -gap
		}
		if gap > d.th.MetadataYearGap {
			res.Alerts = append(res.Alerts, alert(model.AlertMetadata, model.RiskMedium, fmt.Sprintf(msgYearGap, createdYear, modYear)))
		}
	}

	fonts := make(map[string]struct{}, len(meta.Fonts))
	for _, f := range meta.Fonts {
		fonts[f] = struct{}{}
	}
	if len(fonts) > d.th.MaxFonts {
		res.Alerts = append(res.Alerts, alert(model.AlertMetadata, model.RiskMedium, fmt.Sprintf(msgFonts, len(fonts))))
	}
	return res
}
