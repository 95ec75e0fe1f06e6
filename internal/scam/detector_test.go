package scam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/patterns"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(patterns.MustDefault(), model.DefaultThresholds())
}

const scamLetter = `Dear Sir,
I am the attorney of the late Mr. Smith, and you are the beneficiary to the late investor.
This is a confidential business proposal involving ten million dollars held in an overseas bank.
Please transfer funds to our account and pay an advance fee of $500 by wire transfer or bitcoin.
Do not tell anyone about this. Contact me immediately. God bless you.`

func TestInconsistencies_NoFeeButFee(t *testing.T) {
	d := newDetector(t)
	alerts := d.Inconsistencies("No fee will ever apply. However, a fee of $50 applies monthly.")

	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertInconsistency, alerts[0].Kind)
	assert.Equal(t, model.RiskMedium, alerts[0].Level)
	assert.Equal(t, "Document claims no fees but then mentions payments/charges", alerts[0].Description)
}

func TestInconsistencies_CompanyNames(t *testing.T) {
	d := newDetector(t)
	text := "Acme Holdings LLC signs. Acme Holdings LLC pays. Globex Corp agrees. Globex Corp delivers. Initech Inc appears once."

	alerts := d.Inconsistencies(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Document references multiple different company names: Acme Holdings LLC, Globex Corp", alerts[0].Description)
	assert.Equal(t, "Multiple company names may indicate document has been altered", alerts[0].Context)

	assert.Empty(t, d.Inconsistencies("Acme Holdings LLC signs. Acme Holdings LLC pays. Globex Corp agrees."))
}

func TestScamTemplates_KeywordCount(t *testing.T) {
	d := newDetector(t)
	alerts := d.ScamTemplates("Send a Wire Transfer or bitcoin now, you are a lottery winner.")

	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertScamTemplate, alerts[0].Kind)
	assert.Equal(t, model.RiskHigh, alerts[0].Level)
	assert.Contains(t, alerts[0].Description, "(3 suspicious terms detected)")
}

func TestScamTemplates_BelowThreshold(t *testing.T) {
	d := newDetector(t)
	assert.Empty(t, d.ScamTemplates("Payment by wire transfer or bitcoin."))
}

func TestScamTemplates_Structures(t *testing.T) {
	d := newDetector(t)
	alerts := d.ScamTemplates(scamLetter)

	var templates, structures int
	for _, a := range alerts {
		switch a.Kind {
		case model.AlertScamTemplate:
			templates++
		case model.AlertScamStructure:
			structures++
			assert.True(t, strings.HasPrefix(a.Description, "Document contains language pattern common in scams: "))
		}
	}
	assert.Equal(t, 1, templates)
	assert.GreaterOrEqual(t, structures, 6)
}

func TestUnusualRequests_ContextWindow(t *testing.T) {
	d := newDetector(t)
	text := strings.Repeat("lorem ipsum ", 30) + "please send money to my account today " + strings.Repeat("dolor sit ", 30)

	alerts := d.UnusualRequests(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Document contains suspicious request: Requests money transfer to an account", alerts[0].Description)
	assert.Contains(t, alerts[0].Context, "send money to my account")
	assert.LessOrEqual(t, len(alerts[0].Context), len("send money to my account")+200)
}

func TestSuspiciousClauses_SentenceContext(t *testing.T) {
	d := newDetector(t)
	text := "This lease starts in May. The landlord may terminate this agreement at any time for any reason. Rent is due monthly."

	alerts := d.SuspiciousClauses(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "unilateral_termination", alerts[0].Category)
	assert.Equal(t, model.RiskHigh, alerts[0].Level)
	assert.Equal(t, "The landlord may terminate this agreement at any time for any reason", alerts[0].Context)
}

func TestSuspiciousClauses_NewlineAndFallback(t *testing.T) {
	d := newDetector(t)
	text := "Heading without period\nThe vendor reserves the right to charge additional fees whenever it likes"

	alerts := d.SuspiciousClauses(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "hidden_fees", alerts[0].Category)
	assert.Equal(t, "The vendor reserves the right to charge additional fees whenever it likes", alerts[0].Context)
}

func TestSuspiciousClauses_DedupByContext(t *testing.T) {
	d := newDetector(t)
	text := "The landlord may terminate this agreement at any time and shall not be liable under any circumstances."

	alerts := d.SuspiciousClauses(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "unilateral_termination", alerts[0].Category)
}

func TestSuspiciousClauses_FirstMatchPerPattern(t *testing.T) {
	d := newDetector(t)
	text := "Time is of the essence. Again, time is of the essence. TIME IS OF THE ESSENCE."

	alerts := d.SuspiciousClauses(text)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Time is of the essence", alerts[0].Context)
}

func TestDetect_PropertyExample(t *testing.T) {
	d := newDetector(t)
	res := d.Detect("No fee will ever apply. However, a fee of $50 applies monthly.")

	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "penalty_clauses", res.Alerts[0].Category)
	assert.Equal(t, "However, a fee of $50 applies monthly", res.Alerts[0].Context)
	assert.Equal(t, model.AlertInconsistency, res.Alerts[1].Kind)
	assert.InDelta(t, 0.4, res.RiskScore, 1e-9)
	require.Len(t, res.Messages, 2)
	require.Len(t, res.Signals, 1)
}

func TestDetect_ScoresBounded(t *testing.T) {
	d := newDetector(t)
	for _, text := range []string{"", "plain words", scamLetter, strings.Repeat(scamLetter+"\n", 5)} {
		res := d.Detect(text)
		assert.GreaterOrEqual(t, res.RiskScore, 0.0)
		assert.LessOrEqual(t, res.RiskScore, 1.0)
	}
	assert.Equal(t, 0.0, d.Detect("plain words").RiskScore)
	assert.Equal(t, 1.0, d.Detect(scamLetter).RiskScore)
}

func TestDetect_Idempotent(t *testing.T) {
	d := newDetector(t)
	first := d.Detect(scamLetter)
	second := d.Detect(scamLetter)
	assert.Equal(t, first, second)
}

func TestDetect_Monotonic(t *testing.T) {
	d := newDetector(t)
	clauses := []string{
		"The company may terminate this agreement at any time.",
		"Additional fees may apply.",
		"The client waives all claims.",
		"The owner assigns all rights.",
		"The signer is jointly and severally liable.",
		"The company may terminate this agreement at any time.",
	}

	text := "This is a service agreement."
	prev := d.Detect(text).RiskScore
	for _, c := range clauses {
		text += " " + c
		next := d.Detect(text).RiskScore
		assert.GreaterOrEqual(t, next, prev, "score decreased after adding %q", c)
		prev = next
	}
	assert.Equal(t, 1.0, prev)
}

func TestRenderAlert(t *testing.T) {
	plain := model.Alert{Description: "Something odd"}
	assert.Equal(t, "Something odd ", RenderAlert(plain, 200))

	withContext := model.Alert{Description: "Clause", Context: "short context"}
	assert.Equal(t, "Clause \nContext: \"short context\"", RenderAlert(withContext, 200))

	long := model.Alert{Description: "Clause", Context: strings.Repeat("x", 250)}
	rendered := RenderAlert(long, 200)
	assert.Equal(t, "Clause \nContext: \""+strings.Repeat("x", 197)+"...\"", rendered)
}
