// Package progression maps experience gains onto the level curve.
package progression

const (
	// MaxLevel последний достижимый уровень
	MaxLevel = 15
	// XPCap максимальный опыт, который хранится на последнем уровне
	XPCap = 6749
)

// levelXP[i] опыт, необходимый для перехода с уровня i на i+1
var levelXP = [MaxLevel]int64{
	100, 150, 200, 250, 300,
	350, 400, 450, 500, 550,
	600, 650, 700, 750, 800,
}

// Threshold возвращает опыт, нужный для перехода с уровня level на следующий.
// Для последнего уровня и вне диапазона возвращает 0
func Threshold(level int) int64 {
	if level < 0 || level >= MaxLevel {
		return 0
	}
	return levelXP[level]
}

// ApplyXP начисляет gained опыта и возвращает новые уровень и опыт.
// Функция чистая, сохранение результата на вызывающей стороне
func ApplyXP(level int, xp, gained int64) (int, int64) {
	if level >= MaxLevel {
		return level, min(xp, XPCap)
	}
	if level < 0 {
		level = 0
	}

	xp += gained
	for level < MaxLevel && xp >= levelXP[level] {
		xp -= levelXP[level]
		level++
	}

	if level == MaxLevel {
		xp = min(xp, XPCap)
	}

	return level, xp
}
