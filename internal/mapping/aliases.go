package mapping

// headerAliases maps common template field machine names to known header
// variants teachers actually type. Matching is containment in either
// direction, so short stems cover inflected forms. Extend the table here,
// not the matching algorithm.
var headerAliases = map[string][]string{
	"student_name": {"اسم الطالب", "الاسم", "اسم الطالبة", "الطالب", "الطالبة", "student", "name"},
	"grade":        {"الدرجة", "درجة", "المعدل", "العلامة", "النتيجة", "grade", "score", "mark"},
	"date":         {"التاريخ", "تاريخ", "اليوم", "date"},
	"school_name":  {"اسم المدرسة", "المدرسة", "school"},
	"teacher_name": {"اسم المعلم", "اسم المعلمة", "المعلم", "المعلمة", "teacher"},
	"class":        {"الصف", "صف", "المرحلة", "class"},
	"section":      {"الشعبة", "شعبة", "الفصل", "section"},
}

// aliasesFor returns the known header variants for a field machine name,
// or nil when the field has no curated aliases.
func aliasesFor(machineName string) []string {
	return headerAliases[machineName]
}
