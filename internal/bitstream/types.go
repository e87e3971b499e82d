package bitstream

// typeNames lists the HEVC NAL unit type names indexed by their type code
// (ITU-T H.265 Table 7-1). The order is fixed: ParameterSetThreshold is the
// position of PPS_NUT in this table.
var typeNames = [64]string{
	"TRAIL_N",
	"TRAIL_R",
	"TSA_N",
	"TLA_R",
	"STSA_N",
	"STSA_R",
	"RADL_N",
	"RADL_R",
	"RASL_N",
	"RASL_R",
	"RSV_VCL_N10",
	"RSV_VCL_R11",
	"RSV_VCL_N12",
	"RSV_VCL_R13",
	"RSV_VCL_N14",
	"RSV_VCL_R15",
	"BLA_W_LP",
	"BLA_W_RADL",
	"BLA_N_LP",
	"IDR_W_RADL",
	"IDR_N_LP",
	"CRA_NUT",
	"RSV_IRAP_VCL22",
	"RSV_IRAP_VCL23",
	"RSV_VCL24",
	"RSV_VCL25",
	"RSV_VCL26",
	"RSV_VCL27",
	"RSV_VCL28",
	"RSV_VCL29",
	"RSV_VCL30",
	"RSV_VCL31",
	"VPS_NUT",
	"SPS_NUT",
	"PPS_NUT",
	"AUD_NUT",
	"EOS_NUT",
	"EOB_NUT",
	"FD_NUT",
	"PREFIX_SEI_NUT",
	"SUFFIX_SEI_NUT",
	"RSV_NVCL41",
	"RSV_NVCL42",
	"RSV_NVCL43",
	"RSV_NVCL44",
	"RSV_NVCL45",
	"RSV_NVCL46",
	"RSV_NVCL47",
	"UNSPEC48",
	"UNSPEC49",
	"UNSPEC50",
	"UNSPEC51",
	"UNSPEC52",
	"UNSPEC53",
	"UNSPEC54",
	"UNSPEC55",
	"UNSPEC56",
	"UNSPEC57",
	"UNSPEC58",
	"UNSPEC59",
	"UNSPEC60",
	"UNSPEC61",
	"UNSPEC62",
	"UNSPEC63",
}

// InvalidTypeName is reported for type codes outside the table.
const InvalidTypeName = "INVALID"

// ParameterSetThreshold is the ordinal of PPS_NUT. Units with a type code above
// it (AUD, SEI, reserved, unspecified) are never used as split points.
const ParameterSetThreshold = 34

// TypeName returns the symbolic name of a NAL unit type code.
func TypeName(t uint8) string {
	if int(t) >= len(typeNames) {
		return InvalidTypeName
	}
	return typeNames[t]
}

// TypeIndex returns the ordinal of name in typeNames.
func TypeIndex(name string) (int, bool) {
	for i, n := range typeNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}
