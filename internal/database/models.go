package database

// CaseDetail is one court case, keyed by its register case number.
type CaseDetail struct {
	CaseNumber              string  `json:"case_number" gorm:"column:case_number;primaryKey"`
	Status                  *string `json:"status" gorm:"column:status"`
	RegisterURL             *string `json:"register_url" gorm:"column:register_url"`
	Precinct                *string `json:"precinct" gorm:"column:precinct"`
	Style                   *string `json:"style" gorm:"column:style"`
	Plaintiff               *string `json:"plaintiff" gorm:"column:plaintiff"`
	Defendants              *string `json:"defendants" gorm:"column:defendants"`
	PlaintiffZip            *string `json:"plaintiff_zip" gorm:"column:plaintiff_zip"`
	DefendantZip            *string `json:"defendant_zip" gorm:"column:defendant_zip"`
	CaseType                *string `json:"case_type" gorm:"column:case_type"`
	DateFiled               *string `json:"date_filed" gorm:"column:date_filed"`
	ActiveOrInactive        *string `json:"active_or_inactive" gorm:"column:active_or_inactive"`
	JudgmentAfterMoratorium *string `json:"judgment_after_moratorium" gorm:"column:judgment_after_moratorium"`
	FirstCourtAppearance    *string `json:"first_court_appearance" gorm:"column:first_court_appearance"`
}

// Disposition is the final outcome of a case. At most one per case.
type Disposition struct {
	ID                     uint        `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CaseNumber             string      `json:"case_number" gorm:"column:case_number;not null;uniqueIndex:idx_disposition_case_number"`
	Type                   *string     `json:"type" gorm:"column:type"`
	Date                   *string     `json:"date" gorm:"column:date"`
	Amount                 *string     `json:"amount" gorm:"column:amount"`
	AwardedTo              *string     `json:"awarded_to" gorm:"column:awarded_to"`
	AwardedAgainst         *string     `json:"awarded_against" gorm:"column:awarded_against"`
	JudgementFor           *string     `json:"judgement_for" gorm:"column:judgement_for"`
	MatchScore             float64     `json:"match_score" gorm:"column:match_score;not null;default:0"`
	AttorneysForPlaintiffs *string     `json:"attorneys_for_plaintiffs" gorm:"column:attorneys_for_plaintiffs"`
	AttorneysForDefendants *string     `json:"attorneys_for_defendants" gorm:"column:attorneys_for_defendants"`
	Comments               *string     `json:"comments" gorm:"column:comments"`
	Case                   *CaseDetail `json:"-" gorm:"foreignKey:CaseNumber;references:CaseNumber;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Event is one row of the register's chronological log.
type Event struct {
	ID          uint        `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CaseNumber  string      `json:"case_number" gorm:"column:case_number;not null;uniqueIndex:idx_event_case_event,priority:1"`
	EventNumber int         `json:"event_number" gorm:"column:event_number;not null;uniqueIndex:idx_event_case_event,priority:2"`
	Date        *string     `json:"date" gorm:"column:date"`
	Time        *string     `json:"time" gorm:"column:time"`
	Officer     *string     `json:"officer" gorm:"column:officer"`
	Result      *string     `json:"result" gorm:"column:result"`
	Type        *string     `json:"type" gorm:"column:type"`
	AllText     *string     `json:"all_text" gorm:"column:all_text"`
	Case        *CaseDetail `json:"-" gorm:"foreignKey:CaseNumber;references:CaseNumber;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Setting is a scheduled hearing from a court calendar.
type Setting struct {
	ID              uint    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CaseNumber      string  `json:"case_number" gorm:"column:case_number;not null;uniqueIndex:idx_setting_unique,priority:1"`
	SettingType     string  `json:"setting_type" gorm:"column:setting_type;not null;default:'';uniqueIndex:idx_setting_unique,priority:2"`
	HearingType     string  `json:"hearing_type" gorm:"column:hearing_type;not null;default:'';uniqueIndex:idx_setting_unique,priority:3"`
	SettingDate     string  `json:"setting_date" gorm:"column:setting_date;not null;default:'';uniqueIndex:idx_setting_unique,priority:4"`
	CaseLink        *string `json:"case_link" gorm:"column:case_link"`
	SettingStyle    *string `json:"setting_style" gorm:"column:setting_style"`
	JudicialOfficer *string `json:"judicial_officer" gorm:"column:judicial_officer"`
	SettingTime     *string `json:"setting_time" gorm:"column:setting_time"`
}

func (CaseDetail) TableName() string {
	return "case_detail"
}

func (Disposition) TableName() string {
	return "disposition"
}

func (Event) TableName() string {
	return "event"
}

func (Setting) TableName() string {
	return "setting"
}

// SettingKey is the uniqueness key of a Setting.
type SettingKey struct {
	CaseNumber  string
	SettingType string
	HearingType string
	SettingDate string
}

func (s Setting) Key() SettingKey {
	return SettingKey{
		CaseNumber:  s.CaseNumber,
		SettingType: s.SettingType,
		HearingType: s.HearingType,
		SettingDate: s.SettingDate,
	}
}
