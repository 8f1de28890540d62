package lunar

import (
	"math"
	"time"
)

// koreaOffset is the meridian the Korean calendar reckons new moons at.
// The lunar-go tables use UTC+8, so a new moon between 23:00 and 24:00
// China time starts the month a day later in Korea (e.g. 설날 2027-02-07).
const koreaOffset = 9 * time.Hour

// koreanMonthStart returns the civil date, at UTC+9, of the new moon
// nearest to chineseStart. ok is false when no new moon lies within a day
// of it, which would mean the tables and the computation disagree.
func koreanMonthStart(chineseStart time.Time) (start time.Time, ok bool) {
	jd := julianDay(chineseStart)
	k := math.Round((decimalYear(chineseStart) - 2000) * 12.3685)
	nm := newMoonJD(k)
	for i := 0; i < 4 && nm > jd+15; i++ {
		k--
		nm = newMoonJD(k)
	}
	for i := 0; i < 4 && nm < jd-15; i++ {
		k++
		nm = newMoonJD(k)
	}

	t := fromJulianDay(nm).Add(koreaOffset)
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if d := start.Sub(chineseStart); d < -24*time.Hour || d > 24*time.Hour {
		return time.Time{}, false
	}
	return start, true
}

func julianDay(t time.Time) float64 {
	return float64(t.Unix())/86400 + 2440587.5
}

func fromJulianDay(jd float64) time.Time {
	sec := (jd - 2440587.5) * 86400
	return time.Unix(int64(math.Round(sec)), 0).UTC()
}

func decimalYear(t time.Time) float64 {
	return float64(t.Year()) + float64(t.YearDay()-1)/365.25
}

// newMoonJD is the mean-to-true new moon of lunation k (k=0 at 2000-01-06)
// in Julian days UT, after Meeus, Astronomical Algorithms ch. 49.
func newMoonJD(k float64) float64 {
	T := k / 1236.85
	T2, T3, T4 := T*T, T*T*T, T*T*T*T

	jde := 2451550.09766 + 29.530588861*k + 0.00015437*T2 - 0.000000150*T3 + 0.00000000073*T4
	E := 1 - 0.002516*T - 0.0000074*T2
	M := rad(2.5534 + 29.10535670*k - 0.0000014*T2 - 0.00000011*T3)
	Mp := rad(201.5643 + 385.81693528*k + 0.0107582*T2 + 0.00001238*T3 - 0.000000058*T4)
	F := rad(160.7108 + 390.67050284*k - 0.0016118*T2 - 0.00000227*T3 + 0.000000011*T4)
	Om := rad(124.7746 - 1.56375588*k + 0.0020672*T2 + 0.00000215*T3)

	jde += -0.40720*math.Sin(Mp) +
		0.17241*E*math.Sin(M) +
		0.01608*math.Sin(2*Mp) +
		0.01039*math.Sin(2*F) +
		0.00739*E*math.Sin(Mp-M) -
		0.00514*E*math.Sin(Mp+M) +
		0.00208*E*E*math.Sin(2*M) -
		0.00111*math.Sin(Mp-2*F) -
		0.00057*math.Sin(Mp+2*F) +
		0.00056*E*math.Sin(2*Mp+M) -
		0.00042*math.Sin(3*Mp) +
		0.00042*E*math.Sin(M+2*F) +
		0.00038*E*math.Sin(M-2*F) -
		0.00024*E*math.Sin(2*Mp-M) -
		0.00017*math.Sin(Om) -
		0.00007*math.Sin(Mp+2*M) +
		0.00004*math.Sin(2*Mp-2*F) +
		0.00004*math.Sin(3*M) +
		0.00003*math.Sin(Mp+M-2*F) +
		0.00003*math.Sin(2*Mp+2*F) -
		0.00003*math.Sin(Mp+M+2*F) +
		0.00003*math.Sin(Mp-M+2*F) -
		0.00002*math.Sin(Mp-M-2*F) -
		0.00002*math.Sin(3*Mp+M) +
		0.00002*math.Sin(4*Mp)

	// planetary arguments
	planetary := [14][3]float64{
		{299.77, 0.107408, 0.000325},
		{251.88, 0.016321, 0.000165},
		{251.83, 26.651886, 0.000164},
		{349.42, 36.412478, 0.000126},
		{84.66, 18.206239, 0.000110},
		{141.74, 53.303771, 0.000062},
		{207.14, 2.453732, 0.000060},
		{154.84, 7.306860, 0.000056},
		{34.52, 27.261239, 0.000047},
		{207.19, 0.121824, 0.000042},
		{291.34, 1.844379, 0.000040},
		{161.72, 24.198154, 0.000037},
		{239.56, 25.513099, 0.000035},
		{331.55, 3.592518, 0.000023},
	}
	for i, p := range planetary {
		a := p[0] + p[1]*k
		if i == 0 {
			a -= 0.009173 * T2
		}
		jde += p[2] * math.Sin(rad(a))
	}

	return jde - deltaT(2000+k/12.3685)/86400
}

func rad(deg float64) float64 {
	return math.Mod(deg, 360) * math.Pi / 180
}

// deltaT approximates TT-UT in seconds (Espenak & Meeus polynomials).
func deltaT(y float64) float64 {
	switch {
	case y < 1920:
		t := y - 1900
		return -2.79 + 1.494119*t - 0.0598939*t*t + 0.0061966*t*t*t - 0.000197*t*t*t*t
	case y < 1941:
		t := y - 1920
		return 21.20 + 0.84493*t - 0.076100*t*t + 0.0020936*t*t*t
	case y < 1961:
		t := y - 1950
		return 29.07 + 0.407*t - t*t/233 + t*t*t/2547
	case y < 1986:
		t := y - 1975
		return 45.45 + 1.067*t - t*t/260 - t*t*t/718
	case y < 2005:
		t := y - 2000
		return 63.86 + 0.3345*t - 0.060374*t*t + 0.0017275*t*t*t + 0.000651814*t*t*t*t + 0.00002373599*t*t*t*t*t
	case y < 2050:
		t := y - 2000
		return 62.92 + 0.32217*t + 0.005589*t*t
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-y)
	}
}
