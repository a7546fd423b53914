package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/jwalitptl/physio-api/internal/model"
)

// Letterhead identifies the clinic on every page.
type Letterhead struct {
	Name    string
	Address string
	Phone   string
	Email   string
	VAT     string
}

// TherapyReport is everything printed on a therapy report.
type TherapyReport struct {
	Patient     *model.Patient
	Record      *model.ClinicalRecord
	TherapyType *model.TherapyType
	Therapy     *model.TherapyDetail
	VAS         model.VASImprovement
}

// RecordReport is everything printed on a clinical record report.
type RecordReport struct {
	Patient    *model.Patient
	Record     *model.ClinicalRecord
	Anamneses  []*model.Anamnesis
	VitalSigns []*model.VitalSign
	Therapies  []*model.Therapy
}

const (
	pageWidth  = 190.0
	lineHeight = 6.0
)

// Renderer turns persisted entities into PDF documents.
type Renderer struct {
	letterhead  Letterhead
	generatedAt func() time.Time
}

func NewRenderer(lh Letterhead) *Renderer {
	return &Renderer{letterhead: lh, generatedAt: time.Now}
}

func (r *Renderer) Therapy(rep *TherapyReport) ([]byte, error) {
	doc := r.newDocument(fmt.Sprintf("Scheda terapia %s", rep.Therapy.Modality))
	doc.section("Paziente")
	doc.patient(rep.Patient)

	doc.section("Cartella clinica")
	doc.field("Numero", rep.Record.RecordNumber)
	doc.field("Diagnosi", rep.Record.Diagnosis)

	t := rep.Therapy.Therapy
	doc.section("Terapia")
	name := string(t.Modality)
	if rep.TherapyType != nil {
		name = fmt.Sprintf("%s (%s)", rep.TherapyType.Name, t.Modality)
	}
	doc.field("Tipo", name)
	doc.field("Stato", string(t.Status))
	doc.field("Sedute", fmt.Sprintf("%d / %d", t.CompletedSessions, t.PrescribedSessions))
	doc.field("Frequenza", t.Frequency)
	doc.field("Distretto", t.District)
	doc.field("Inizio", formatDate(t.StartDate))
	doc.field("Fine", formatDate(t.EndDate))
	doc.field("Parametri", string(t.Parameters))
	if t.Notes != "" {
		doc.field("Note", t.Notes)
	}

	doc.section("Sedute")
	doc.table(
		[]string{"#", "Data", "Stato", "Durata", "VAS pre", "VAS post", "Firmata"},
		[]float64{12, 38, 34, 24, 26, 26, 30},
		sessionRows(rep.Therapy.Sessions),
	)

	doc.section("Esito")
	doc.field("Sedute valutate", strconv.Itoa(rep.VAS.ScoredSessions))
	doc.field("Miglioramento VAS medio", strconv.FormatFloat(rep.VAS.Improvement, 'f', 2, 64))

	return doc.bytes()
}

func (r *Renderer) ClinicalRecord(rep *RecordReport) ([]byte, error) {
	rec := rep.Record
	doc := r.newDocument(fmt.Sprintf("Cartella clinica %s", rec.RecordNumber))
	doc.section("Paziente")
	doc.patient(rep.Patient)

	doc.section("Cartella")
	doc.field("Numero", rec.RecordNumber)
	doc.field("Accettazione", rec.AcceptanceDate.Format(model.DateLayout))
	status := "Aperta"
	if !rec.IsOpen() {
		status = "Chiusa il " + formatDate(rec.ClosedAt)
	}
	doc.field("Stato", status)
	doc.field("Diagnosi", rec.Diagnosis)
	doc.field("Dettagli diagnostici", rec.DiagnosticDetails)
	doc.field("Sintomatologia", rec.Symptomatology)
	doc.field("Esame obiettivo", rec.ObjectiveExamination)
	doc.field("Esami strumentali", rec.InstrumentalExams)
	doc.field("Valutazione clinica", rec.ClinicalEvaluation)
	if rec.InterventionDate != nil {
		doc.field("Intervento", formatDate(rec.InterventionDate))
	}
	if rec.InterventionDoctor != nil {
		doc.field("Chirurgo", *rec.InterventionDoctor)
	}

	if len(rep.Anamneses) > 0 {
		doc.section("Anamnesi")
		for _, a := range rep.Anamneses {
			doc.field("Data", a.RecordedAt.Format(model.DateLayout))
			doc.field("Motivo", a.ChiefComplaint)
			doc.field("Storia attuale", a.PresentIllness)
			doc.field("Anamnesi remota", a.PastMedicalHistory)
			doc.field("Farmaci", a.Medications)
			doc.field("Allergie", a.Allergies)
			doc.pdf.Ln(2)
		}
	}

	if len(rep.VitalSigns) > 0 {
		doc.section("Parametri vitali")
		rows := make([][]string, 0, len(rep.VitalSigns))
		for _, v := range rep.VitalSigns {
			rows = append(rows, []string{
				v.MeasuredAt.Format(model.DateLayout),
				optString(v.BloodPressure),
				optInt(v.HeartRate),
				optFloat(v.Temperature),
				optInt(v.OxygenSaturation),
				optFloat(v.Weight),
			})
		}
		doc.table([]string{"Data", "PA", "FC", "Temp", "SpO2", "Peso"}, []float64{35, 35, 30, 30, 30, 30}, rows)
	}

	doc.section("Terapie")
	rows := make([][]string, 0, len(rep.Therapies))
	for _, t := range rep.Therapies {
		rows = append(rows, []string{
			string(t.Modality),
			string(t.Status),
			fmt.Sprintf("%d / %d", t.CompletedSessions, t.PrescribedSessions),
			formatDate(t.StartDate),
			formatDate(t.EndDate),
		})
	}
	doc.table([]string{"Tipo", "Stato", "Sedute", "Inizio", "Fine"}, []float64{50, 36, 32, 36, 36}, rows)

	return doc.bytes()
}

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *Renderer) newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetTitle(title, true)
	pdf.SetCreator(r.letterhead.Name, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	lh := r.letterhead
	generated := r.generatedAt().Format("02/01/2006 15:04")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(pageWidth, 7, tr(lh.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		contact := lh.Address
		if lh.Phone != "" {
			contact += "  Tel. " + lh.Phone
		}
		if lh.Email != "" {
			contact += "  " + lh.Email
		}
		pdf.CellFormat(pageWidth, 5, tr(contact), "B", 1, "L", false, 0, "")
		pdf.Ln(3)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		footer := "Generato il " + generated
		if lh.VAT != "" {
			footer += "  P.IVA " + lh.VAT
		}
		pdf.CellFormat(pageWidth/2, 5, tr(footer), "", 0, "L", false, 0, "")
		pdf.CellFormat(pageWidth/2, 5, fmt.Sprintf("Pagina %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(pageWidth, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	return &document{pdf: pdf, tr: tr}
}

func (d *document) section(title string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.SetFillColor(230, 236, 242)
	d.pdf.CellFormat(pageWidth, 8, d.tr(title), "", 1, "L", true, 0, "")
	d.pdf.Ln(1)
}

func (d *document) field(label, value string) {
	if value == "" {
		value = "-"
	}
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(50, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(pageWidth-50, lineHeight, d.tr(value), "", "L", false)
}

func (d *document) patient(p *model.Patient) {
	d.field("Nome", p.FullName())
	d.field("Codice fiscale", p.FiscalCode)
	if !p.BirthDate.IsZero() {
		d.field("Nato il", p.BirthDate.Format(model.DateLayout)+" "+p.BirthPlace)
	}
	d.field("Telefono", firstNonEmpty(p.Mobile, p.Phone))
}

func (d *document) table(headers []string, widths []float64, rows [][]string) {
	d.pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		d.pdf.CellFormat(widths[i], 7, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 9)
	if len(rows) == 0 {
		total := 0.0
		for _, w := range widths {
			total += w
		}
		d.pdf.CellFormat(total, 7, d.tr("Nessun dato"), "1", 1, "C", false, 0, "")
		return
	}
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], 7, d.tr(cell), "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sessionRows(sessions []*model.TherapySession) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		signed := "No"
		if s.SignedAt != nil {
			signed = "Si"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.SessionNumber),
			s.SessionDate.Format("02/01/2006 15:04"),
			string(s.Status),
			strconv.Itoa(s.Duration) + " min",
			optInt(s.VASBefore),
			optInt(s.VASAfter),
			signed,
		})
	}
	return rows
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(model.DateLayout)
}

func optString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
