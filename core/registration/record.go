package registration

import "time"

type (
	Gender        string
	BloodGroup    string
	TransportMode string
	YesNo         string
)

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"

	TransportNone      TransportMode = "none"
	TransportSchoolBus TransportMode = "school_bus"
	TransportOwn       TransportMode = "own"
	TransportPublic    TransportMode = "public"

	Yes YesNo = "yes"
	No  YesNo = "no"
)

var (
	Genders        = []Gender{GenderMale, GenderFemale, GenderOther}
	BloodGroups    = []BloodGroup{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	TransportModes = []TransportMode{TransportNone, TransportSchoolBus, TransportOwn, TransportPublic}
)

type (
	// Record is one in-progress student registration.
	// Every leaf is addressed by the dot-joined json names of its fields, e.g. "father.name".
	Record struct {
		AdmissionNo   string     `json:"admissionNo"`
		AdmissionDate string     `json:"admissionDate"`
		FirstName     string     `json:"firstName"`
		MiddleName    string     `json:"middleName"`
		LastName      string     `json:"lastName"`
		DateOfBirth   string     `json:"dateOfBirth"`
		Age           string     `json:"age"` // derived from DateOfBirth
		Gender        Gender     `json:"gender"`
		BloodGroup    BloodGroup `json:"bloodGroup"`
		Religion      string     `json:"religion"`
		Caste         string     `json:"caste"`
		Nationality   string     `json:"nationality"`
		MobileNumber  string     `json:"mobileNumber"`
		Email         string     `json:"email"`
		AadhaarNumber string     `json:"aadhaarNumber"`

		AdmitSession   Session       `json:"admitSession"`
		CurrentSession Session       `json:"currentSession"`
		Academic       Academic      `json:"academic"`
		Transport      Transport     `json:"transport"`
		Address        Address       `json:"address"`
		Father         Parent        `json:"father"`
		Mother         Parent        `json:"mother"`
		Guardian       Guardian      `json:"guardian"`
		LastEducation  LastEducation `json:"lastEducation"`
		Other          Other         `json:"other"`
		Documents      Documents     `json:"documents"`
	}

	Session struct {
		Group    string `json:"group"`
		Stream   string `json:"stream"`
		Class    string `json:"class"`
		Section  string `json:"section"`
		RollNo   string `json:"rollNo"`
		Semester string `json:"semester"`
		FeeGroup string `json:"feeGroup"`
		House    string `json:"house"`
	}

	Academic struct {
		RegistrationNo string `json:"registrationNo"`
	}

	Transport struct {
		Mode   TransportMode `json:"mode"`
		Area   string        `json:"area"`
		Stand  string        `json:"stand"`
		Route  string        `json:"route"`
		Driver string        `json:"driver"`
	}

	Address struct {
		HouseNo    string `json:"houseNo"`
		StreetName string `json:"streetName"`
		City       string `json:"city"`
		State      string `json:"state"`
		PinCode    string `json:"pinCode"`

		PermanentHouseNo    string `json:"permanentHouseNo"`
		PermanentStreetName string `json:"permanentStreetName"`
		PermanentCity       string `json:"permanentCity"`
		PermanentState      string `json:"permanentState"`

		SameAsPresentAddress bool `json:"sameAsPresentAddress"`
	}

	Parent struct {
		Name             string `json:"name"`
		Qualification    string `json:"qualification"`
		Occupation       string `json:"occupation"`
		Email            string `json:"email"`
		ContactNumber    string `json:"contactNumber"`
		AadhaarNo        string `json:"aadhaarNo"`
		AnnualIncome     string `json:"annualIncome"`
		IsCampusEmployee YesNo  `json:"isCampusEmployee"`
	}

	Guardian struct {
		Name          string `json:"name"`
		Address       string `json:"address"`
		ContactNumber string `json:"contactNumber"`
	}

	LastEducation struct {
		SchoolName string `json:"schoolName"`
		Address    string `json:"address"`
		LastClass  string `json:"lastClass"`
		Percentage string `json:"percentage"`
		TCNo       string `json:"tcNo"`
		TCDate     string `json:"tcDate"`
	}

	Other struct {
		BelongToBPL        YesNo  `json:"belongToBPL"`
		Minority           YesNo  `json:"minority"`
		Disability         YesNo  `json:"disability"`
		DisabilityType     string `json:"disabilityType"`
		IdentificationMark string `json:"identificationMark"`
		MedicalConditions  string `json:"medicalConditions"`
		BankName           string `json:"bankName"`
		AccountNo          string `json:"accountNo"`
		IFSCCode           string `json:"ifscCode"`
		Remarks            string `json:"remarks"`
	}

	// Documents holds one optional file per slot.
	Documents struct {
		StudentImage        *Document `json:"studentImage"`
		FatherImage         *Document `json:"fatherImage"`
		MotherImage         *Document `json:"motherImage"`
		GuardianImage       *Document `json:"guardianImage"`
		StudentSignature    *Document `json:"studentSignature"`
		ParentSignature     *Document `json:"parentSignature"`
		BirthCertificate    *Document `json:"birthCertificate"`
		StudentAadhar       *Document `json:"studentAadhar"`
		FatherAadhar        *Document `json:"fatherAadhar"`
		MotherAadhar        *Document `json:"motherAadhar"`
		TransferCertificate *Document `json:"transferCertificate"`
		MarkSheet           *Document `json:"markSheet"`
		CasteCertificate    *Document `json:"casteCertificate"`
		IncomeCertificate   *Document `json:"incomeCertificate"`
		MedicalCertificate  *Document `json:"medicalCertificate"`
	}

	// Document is an opaque handle on an uploaded file kept in a core.BlobStore.
	// Handles are never mutated once created.
	Document struct {
		Key         string    `json:"key"`
		Name        string    `json:"name"`
		ContentType string    `json:"contentType"`
		Size        int64     `json:"size"`
		Checksum    string    `json:"checksum"`
		UploadedAt  time.Time `json:"uploadedAt"`
	}
)

// NewRecord returns a record with every field at its empty default.
func NewRecord() Record {
	return Record{}
}

// FullName joins the non-empty student names.
func (r Record) FullName() string {
	name := r.FirstName
	for _, n := range []string{r.MiddleName, r.LastName} {
		if n == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += n
	}
	return name
}
