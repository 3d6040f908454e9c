package registration_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	"github.com/ravi1475/School-ERPS-sub002/tests"
)

func TestAssembler_Build(t *testing.T) {
	rec := testutil.ValidRecord(t)
	rec.Address.SameAsPresentAddress = true
	photo := &registration.Document{Key: "drafts/1/studentImage/a", Name: "asha.png", ContentType: "image/png", Size: 10, Checksum: "abc"}
	rec.Documents.StudentImage = photo

	p := registration.NewAssembler("partnerId", "42").Build(rec)

	assert.Equal(t, "42", p.Fields["partnerId"])
	assert.Equal(t, "Ravi Verma", p.Fields["father.name"])
	assert.Equal(t, "302001", p.Fields["address.pinCode"])
	assert.NotContains(t, p.Fields, "address.sameAsPresentAddress", "the mirror flag is never sent")
	assert.NotContains(t, p.Fields, "documents.studentImage", "documents are sent as files")

	v, ok := p.Fields["middleName"]
	assert.True(t, ok, "empty fields are sent")
	assert.Equal(t, "", v)

	assert.Equal(t, map[string]*registration.Document{"documents.studentImage": photo}, p.Files)
	assert.Equal(t, []string{"documents.studentImage"}, p.FileKeys())

	// every text leaf is sent, plus the partner field
	wantFields := len(registration.Paths()) - len(registration.DocumentSlots()) - 1 + 1
	assert.Len(t, p.Fields, wantFields)
}

func TestAssembler_Build_noPartner(t *testing.T) {
	p := registration.NewAssembler("", "").Build(registration.NewRecord())
	assert.NotContains(t, p.Fields, "")
	assert.Empty(t, p.Files)
}

func TestPayload_Lines(t *testing.T) {
	p := registration.Payload{
		Fields: map[string]string{"lastName": "Verma", "firstName": "Asha"},
		Files: map[string]*registration.Document{
			"documents.markSheet": {Name: "marks.pdf", ContentType: "application/pdf", Size: 2048, Checksum: "ff00"},
		},
	}

	want := "firstName=Asha\n" +
		"lastName=Verma\n" +
		"documents.markSheet=marks.pdf (application/pdf, 2048 bytes, ff00)\n"
	assert.Equal(t, want, p.String())
	assert.Equal(t, want, strings.Join(p.Lines(), ""))
}
